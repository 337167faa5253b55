package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/bluecarbon-mrv/portal/config"
	"github.com/bluecarbon-mrv/portal/internal/auth"
	"github.com/bluecarbon-mrv/portal/internal/db"
	"github.com/bluecarbon-mrv/portal/internal/services"
	"github.com/bluecarbon-mrv/portal/internal/store"
	"github.com/bluecarbon-mrv/portal/types"
	"github.com/spf13/cobra"
)

var (
	userEmail    string
	userPassword string
	userRole     string
	userFullName string
)

// userCmd groups account provisioning commands.
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage portal accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account and its role profile",
	Long: `Creates an identity with a password and binds it to a role. Usage:

	bluecarbon user create --email worker@example.org --password ... --role field_worker --name "A. Sen"
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		input, err := newAccountInput(userEmail, userPassword, userRole, userFullName)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		cfg := config.LoadConfig()
		dbConn, err := db.Open(ctx, cfg)
		if err != nil {
			return err
		}
		defer dbConn.Close()

		hash, err := auth.HashPassword(input.password)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}

		account, err := provisionAccount(ctx, dbConn, input, hash)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) with role %s\n", account.Email, account.ID, input.role)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userCreateCmd)

	userCreateCmd.Flags().StringVar(&userEmail, "email", "", "sign-in email address")
	userCreateCmd.Flags().StringVar(&userPassword, "password", "", "initial password")
	userCreateCmd.Flags().StringVar(&userRole, "role", string(types.RoleFieldWorker), "role: field_worker, buyer or admin")
	userCreateCmd.Flags().StringVar(&userFullName, "name", "", "full name")
	_ = userCreateCmd.MarkFlagRequired("email")
	_ = userCreateCmd.MarkFlagRequired("password")
}

type accountInput struct {
	email    string
	password string
	role     types.Role
	fullName string
}

func newAccountInput(email, password, role, fullName string) (accountInput, error) {
	input := accountInput{
		email:    strings.ToLower(strings.TrimSpace(email)),
		password: password,
		role:     types.Role(strings.TrimSpace(role)),
		fullName: strings.TrimSpace(fullName),
	}
	if !services.ValidateEmail(input.email) {
		return accountInput{}, fmt.Errorf("invalid email %q", email)
	}
	if len(input.password) < auth.MinPasswordLength {
		return accountInput{}, auth.ErrWeakPassword
	}
	if !input.role.Valid() {
		return accountInput{}, fmt.Errorf("unknown role %q", role)
	}
	return input, nil
}

// provisionAccount writes the identity and its profile in one transaction, so
// a failed profile insert leaves no orphaned identity behind.
func provisionAccount(ctx context.Context, conn *sql.DB, input accountInput, passwordHash string) (types.Account, error) {
	var account types.Account
	err := store.WithTx(ctx, conn, func(tx *sql.Tx) error {
		created, err := store.NewAccountRepository(tx).Create(ctx, types.Account{
			Identity:     types.Identity{Email: input.email},
			PasswordHash: passwordHash,
		})
		if err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return fmt.Errorf("account %s already exists", input.email)
			}
			return fmt.Errorf("create account: %w", err)
		}

		_, err = store.NewProfileRepository(tx).Create(ctx, types.Profile{
			UserID:   created.ID,
			Role:     input.role,
			FullName: input.fullName,
		})
		if err != nil {
			return fmt.Errorf("create profile: %w", err)
		}
		account = created
		return nil
	})
	return account, err
}
