package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/adamscao/certvault/internal/auth"
	"github.com/adamscao/certvault/internal/db/repository"
	"github.com/adamscao/certvault/internal/models"
	"github.com/adamscao/certvault/internal/render"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage issuer accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new user",
	RunE:  createUser,
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users",
	RunE:  listUsers,
}

var userDisableCmd = &cobra.Command{
	Use:   "disable <username>",
	Short: "Disable a user account",
	Args:  cobra.ExactArgs(1),
	RunE:  setUserEnabled(false),
}

var userEnableCmd = &cobra.Command{
	Use:   "enable <username>",
	Short: "Enable a user account",
	Args:  cobra.ExactArgs(1),
	RunE:  setUserEnabled(true),
}

var userDeleteCmd = &cobra.Command{
	Use:   "delete <username>",
	Short: "Delete a user account",
	Args:  cobra.ExactArgs(1),
	RunE:  deleteUser,
}

var (
	username       string
	password       string
	role           string
	generateTOTP   bool
	totpSecret     string
	enabled        bool
	maxCertsPerDay int
	listRole       string
	qrOut          string
)

func init() {
	// User create flags
	userCreateCmd.Flags().StringVarP(&username, "username", "u", "", "Username (required)")
	userCreateCmd.Flags().StringVarP(&password, "password", "p", "", "Password (required)")
	userCreateCmd.Flags().StringVarP(&role, "role", "r", "", "Role: admin, therapist or coach (required)")
	userCreateCmd.Flags().BoolVar(&generateTOTP, "generate-totp", false, "Generate TOTP secret automatically")
	userCreateCmd.Flags().StringVar(&totpSecret, "totp-secret", "", "TOTP secret (required if not generating)")
	userCreateCmd.Flags().BoolVar(&enabled, "enabled", true, "Enable user account")
	userCreateCmd.Flags().IntVar(&maxCertsPerDay, "max-certs-per-day", 0, "Maximum certificates per day (0 uses the configured default)")

	userCreateCmd.Flags().StringVar(&qrOut, "qr-out", "", "Write the TOTP enrollment QR code to this PNG file")

	userCreateCmd.MarkFlagRequired("username")
	userCreateCmd.MarkFlagRequired("password")
	userCreateCmd.MarkFlagRequired("role")

	userListCmd.Flags().StringVar(&listRole, "role", "", "Only list users with this role")

	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userDisableCmd)
	userCmd.AddCommand(userEnableCmd)
	userCmd.AddCommand(userDeleteCmd)
}

func createUser(cmd *cobra.Command, args []string) error {
	userRole := models.Role(role)
	if !userRole.Valid() {
		return fmt.Errorf("invalid role %q: must be admin, therapist or coach", role)
	}

	if err := initDB(); err != nil {
		return err
	}
	defer closeDB()

	if !generateTOTP && totpSecret == "" {
		return fmt.Errorf("either --generate-totp or --totp-secret must be provided")
	}
	if generateTOTP {
		totpSecret = ""
	}
	enrollment, err := auth.EnrollTOTP(username, totpSecret)
	if err != nil {
		return err
	}

	// Hash password
	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	// Create user
	userRepo := repository.NewUserRepository(database.DB)
	user := &models.User{
		Username:       username,
		PasswordHash:   passwordHash,
		TOTPSecret:     enrollment.Secret,
		Role:           userRole,
		Enabled:        enabled,
		MaxCertsPerDay: maxCertsPerDay,
	}

	if err := userRepo.Create(cmd.Context(), user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Printf("\nUser created successfully!\n")
	fmt.Printf("User ID: %d\n", user.ID)
	fmt.Printf("Username: %s\n", user.Username)
	fmt.Printf("Role: %s\n", user.Role)
	fmt.Printf("Enabled: %t\n", user.Enabled)
	if user.MaxCertsPerDay > 0 {
		fmt.Printf("Max certs per day: %d\n", user.MaxCertsPerDay)
	} else {
		fmt.Printf("Max certs per day: %d (default)\n", cfg.Policy.MaxCertsPerDay)
	}
	fmt.Printf("\nTOTP Secret: %s\n", enrollment.Secret)
	fmt.Printf("TOTP QR URL: %s\n", enrollment.URL)

	if qrOut != "" {
		png, err := render.QRCodePNG(enrollment.URL, render.DefaultQRSize)
		if err != nil {
			return err
		}
		if err := os.WriteFile(qrOut, png, 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", qrOut, err)
		}
		fmt.Printf("TOTP QR code written to %s\n", qrOut)
	}
	fmt.Printf("\nScan the QR URL with a TOTP app (Google Authenticator, Authy, etc.)\n")

	return nil
}

func listUsers(cmd *cobra.Command, args []string) error {
	if err := initDB(); err != nil {
		return err
	}
	defer closeDB()

	userRepo := repository.NewUserRepository(database.DB)
	users, err := userRepo.List(cmd.Context(), models.Role(listRole))
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	if len(users) == 0 {
		fmt.Println("No users found")
		return nil
	}

	fmt.Printf("\nTotal users: %d\n\n", len(users))
	fmt.Printf("%-5s %-20s %-10s %-10s %-15s %s\n", "ID", "Username", "Role", "Enabled", "Max Certs/Day", "Created")
	fmt.Println("--------------------------------------------------------------------------------")

	for _, user := range users {
		enabledStr := "No"
		if user.Enabled {
			enabledStr = "Yes"
		}
		fmt.Printf("%-5d %-20s %-10s %-10s %-15d %s\n",
			user.ID,
			user.Username,
			user.Role,
			enabledStr,
			user.MaxCertsPerDay,
			user.CreatedAt.Format("2006-01-02 15:04:05"),
		)
	}

	return nil
}

func setUserEnabled(value bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := initDB(); err != nil {
			return err
		}
		defer closeDB()

		userRepo := repository.NewUserRepository(database.DB)
		user, err := userRepo.GetByUsername(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		user.Enabled = value
		if err := userRepo.Update(cmd.Context(), user); err != nil {
			return err
		}

		fmt.Printf("User %s enabled: %t\n", user.Username, user.Enabled)
		return nil
	}
}

func deleteUser(cmd *cobra.Command, args []string) error {
	if err := initDB(); err != nil {
		return err
	}
	defer closeDB()

	userRepo := repository.NewUserRepository(database.DB)
	user, err := userRepo.GetByUsername(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if err := userRepo.Delete(cmd.Context(), user.ID); err != nil {
		return err
	}

	fmt.Printf("User %s deleted\n", user.Username)
	return nil
}
