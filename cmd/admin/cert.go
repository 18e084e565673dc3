package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/adamscao/certvault/internal/app"
	"github.com/adamscao/certvault/internal/credential"
	"github.com/adamscao/certvault/internal/db/repository"
	"github.com/adamscao/certvault/internal/issuance"
	"github.com/adamscao/certvault/internal/models"
	"github.com/adamscao/certvault/internal/policy"
	"github.com/adamscao/certvault/internal/registry"
	"github.com/adamscao/certvault/internal/report"
)

var certCmd = &cobra.Command{
	Use:   "cert",
	Short: "Issue, list, verify and export certificates",
}

var certIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a certificate on behalf of an issuer account",
	RunE:  issueCert,
}

var certListCmd = &cobra.Command{
	Use:   "list",
	Short: "List issued certificates",
	RunE:  listCerts,
}

var certVerifyCmd = &cobra.Command{
	Use:   "verify <certificate-id>",
	Short: "Look a certificate up and check its digest",
	Args:  cobra.ExactArgs(1),
	RunE:  verifyCert,
}

var certExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the vault to an xlsx workbook",
	RunE:  exportCerts,
}

var (
	issuer         string
	recipientName  string
	recipientEmail string
	programName    string
	completionDate string
	certType       string
	commendation   string
	documentOut    string
	filterRole     string
	exportOut      string
)

func init() {
	certIssueCmd.Flags().StringVar(&issuer, "issuer", "", "Issuing username (required)")
	certIssueCmd.Flags().StringVar(&recipientName, "name", "", "Recipient name (required)")
	certIssueCmd.Flags().StringVar(&recipientEmail, "email", "", "Recipient email (required)")
	certIssueCmd.Flags().StringVar(&programName, "program", "", "Program name (required)")
	certIssueCmd.Flags().StringVar(&completionDate, "completed", time.Now().Format(policy.DateLayout), "Completion date, YYYY-MM-DD")
	certIssueCmd.Flags().StringVar(&certType, "type", "", "Certificate type (defaults to the issuer role's type)")
	certIssueCmd.Flags().StringVar(&commendation, "commendation", "", "Commendation text")
	certIssueCmd.Flags().StringVarP(&documentOut, "output", "o", "", "Write the certificate document to this file")
	certIssueCmd.MarkFlagRequired("issuer")

	certListCmd.Flags().StringVar(&filterRole, "role", "", "Only certificates issued under this role")

	certExportCmd.Flags().StringVar(&filterRole, "role", "", "Only certificates issued under this role")
	certExportCmd.Flags().StringVarP(&exportOut, "output", "o", "certificates.xlsx", "Output file")

	certCmd.AddCommand(certIssueCmd)
	certCmd.AddCommand(certListCmd)
	certCmd.AddCommand(certVerifyCmd)
	certCmd.AddCommand(certExportCmd)
}

func issueCert(cmd *cobra.Command, args []string) error {
	if err := initDB(); err != nil {
		return err
	}
	defer closeDB()

	ctx, stop := signalContext()
	defer stop()

	user, err := repository.NewUserRepository(database.DB).GetByUsername(ctx, issuer)
	if err != nil {
		return fmt.Errorf("failed to load issuer %s: %w", issuer, err)
	}

	reg, closeRegistry, err := app.OpenRegistry(ctx, cfg, database)
	if err != nil {
		return err
	}
	defer closeRegistry()

	exporter, closeExporter := app.NewExporter(cfg)
	defer closeExporter()

	service := issuance.NewService(cfg, reg, exporter, logger)

	rec, err := service.Issue(ctx, user, issuance.Draft{
		RecipientName:  recipientName,
		RecipientEmail: recipientEmail,
		ProgramName:    programName,
		CompletionDate: completionDate,
		Type:           models.CertificateType(certType),
		Commendation:   commendation,
		CreatedAt:      time.Now(),
	}, func(s issuance.Stage) {
		if msg := s.Message(); msg != "" {
			fmt.Println(msg)
		}
	})
	if err != nil {
		var vErr *policy.ValidationError
		if errors.As(err, &vErr) {
			for _, f := range vErr.Fields {
				fmt.Fprintf(os.Stderr, "  %s %s\n", f.Field, f.Message)
			}
		}
		return fmt.Errorf("issuance failed: %w", err)
	}

	if documentOut != "" {
		if err := os.WriteFile(documentOut, rec.Document, 0o644); err != nil {
			return fmt.Errorf("failed to write document: %w", err)
		}
	}

	fmt.Printf("\nCertificate ID: %s\n", rec.CertificateID)
	fmt.Printf("Recipient: %s <%s>\n", rec.RecipientName, rec.RecipientEmail)
	fmt.Printf("Program: %s\n", rec.ProgramName)
	fmt.Printf("Hash: %s\n", rec.Hash)
	fmt.Printf("Verify at: %s\n", cfg.VerificationURL(rec.CertificateID))
	fmt.Printf("Cloud URL: %s\n", rec.CloudURL)
	if documentOut != "" {
		fmt.Printf("Document written to %s\n", documentOut)
	}

	return nil
}

func loadRecords(cmd *cobra.Command) ([]*models.CertificateRecord, func() error, error) {
	reg, closeRegistry, err := app.OpenRegistry(cmd.Context(), cfg, database)
	if err != nil {
		return nil, nil, err
	}

	records, err := reg.List(cmd.Context())
	if err != nil {
		closeRegistry()
		return nil, nil, err
	}

	if filterRole != "" {
		r := models.Role(filterRole)
		if !r.Valid() {
			closeRegistry()
			return nil, nil, fmt.Errorf("invalid role %q", filterRole)
		}
		records = registry.FilterByRole(records, r)
	}

	return records, closeRegistry, nil
}

func listCerts(cmd *cobra.Command, args []string) error {
	if err := initDB(); err != nil {
		return err
	}
	defer closeDB()

	records, closeRegistry, err := loadRecords(cmd)
	if err != nil {
		return err
	}
	defer closeRegistry()

	if len(records) == 0 {
		fmt.Println("No certificates found")
		return nil
	}

	fmt.Printf("\nTotal certificates: %d\n\n", len(records))
	fmt.Printf("%-26s %-22s %-20s %-10s %-12s %s\n", "Certificate ID", "Recipient", "Type", "Role", "Issued By", "Issued At")
	fmt.Println("--------------------------------------------------------------------------------------------------------------")

	for _, rec := range records {
		fmt.Printf("%-26s %-22s %-20s %-10s %-12s %s\n",
			rec.CertificateID,
			rec.RecipientName,
			rec.Type,
			rec.IssuerRole,
			rec.IssuedBy,
			time.UnixMilli(rec.Timestamp).Format("2006-01-02 15:04:05"),
		)
	}

	return nil
}

func verifyCert(cmd *cobra.Command, args []string) error {
	if err := initDB(); err != nil {
		return err
	}
	defer closeDB()

	reg, closeRegistry, err := app.OpenRegistry(cmd.Context(), cfg, database)
	if err != nil {
		return err
	}
	defer closeRegistry()

	result, err := registry.NewVerifier(reg, credential.NewHasher(cfg.Integrity.Secret)).Verify(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if !result.Found {
		fmt.Printf("No certificate found with ID %s\n", args[0])
		return nil
	}

	rec := result.Record
	fmt.Printf("\nCertificate found\n")
	fmt.Printf("Certificate ID: %s\n", rec.CertificateID)
	fmt.Printf("Recipient: %s\n", rec.RecipientName)
	fmt.Printf("Program: %s\n", rec.ProgramName)
	fmt.Printf("Completed: %s\n", rec.CompletionDate)
	fmt.Printf("Issued: %s\n", rec.IssueDate)
	fmt.Printf("Status: %s\n", rec.Status)
	fmt.Printf("Hash: %s\n", rec.Hash)
	if result.IntegrityOK {
		fmt.Printf("Integrity: OK\n")
	} else {
		fmt.Printf("Integrity: MISMATCH (stored fields do not match the digest)\n")
	}

	return nil
}

func exportCerts(cmd *cobra.Command, args []string) error {
	if err := initDB(); err != nil {
		return err
	}
	defer closeDB()

	records, closeRegistry, err := loadRecords(cmd)
	if err != nil {
		return err
	}
	defer closeRegistry()

	data, err := report.GenerateVaultExport(records)
	if err != nil {
		return err
	}

	if err := os.WriteFile(exportOut, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", exportOut, err)
	}

	details, _ := json.Marshal(map[string]any{"count": len(records), "output": exportOut})
	auditRepo := repository.NewAuditRepository(database.DB)
	if err := auditRepo.Create(cmd.Context(), &models.AuditLog{
		Action:   models.ActionRegistryExport,
		ClientIP: "cli",
		Success:  true,
		Details:  string(details),
	}); err != nil {
		return err
	}

	fmt.Printf("Exported %d certificates to %s\n", len(records), exportOut)
	return nil
}
