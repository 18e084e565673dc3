package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/adamscao/certvault/internal/db/repository"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect and prune audit logs",
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent audit log entries",
	RunE:  listAudit,
}

var auditPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete audit log entries older than a retention period",
	RunE:  pruneAudit,
}

var (
	auditUser   string
	auditAction string
	auditLimit  int
	retention   time.Duration
)

func init() {
	auditListCmd.Flags().StringVar(&auditUser, "username", "", "Only entries for this user")
	auditListCmd.Flags().StringVar(&auditAction, "action", "", "Only entries with this action")
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 50, "Maximum entries to show")

	auditPruneCmd.Flags().DurationVar(&retention, "older-than", 90*24*time.Hour, "Retention period")

	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditPruneCmd)
}

func listAudit(cmd *cobra.Command, args []string) error {
	if err := initDB(); err != nil {
		return err
	}
	defer closeDB()

	logs, err := repository.NewAuditRepository(database.DB).List(cmd.Context(), repository.AuditFilter{
		Username: auditUser,
		Action:   auditAction,
		Limit:    auditLimit,
	})
	if err != nil {
		return err
	}

	if len(logs) == 0 {
		fmt.Println("No audit entries found")
		return nil
	}

	fmt.Printf("%-20s %-18s %-14s %-16s %-8s %s\n", "Time", "Action", "Username", "Client IP", "Success", "Details")
	for _, l := range logs {
		details := l.Details
		if !l.Success && l.ErrorMsg != "" {
			details = l.ErrorMsg
		}
		fmt.Printf("%-20s %-18s %-14s %-16s %-8t %s\n",
			l.Timestamp.Format("2006-01-02 15:04:05"),
			l.Action,
			l.Username,
			l.ClientIP,
			l.Success,
			details,
		)
	}

	return nil
}

func pruneAudit(cmd *cobra.Command, args []string) error {
	if err := initDB(); err != nil {
		return err
	}
	defer closeDB()

	deleted, err := repository.NewAuditRepository(database.DB).DeleteOld(cmd.Context(), time.Now().Add(-retention))
	if err != nil {
		return err
	}

	fmt.Printf("Deleted %d audit entries older than %s\n", deleted, retention)
	return nil
}
