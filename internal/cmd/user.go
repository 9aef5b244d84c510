package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/99minutos/upload-gateway/internal/core/domain"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
	Long: `Manage accounts in the configured credential store.
Only useful with USER_STORE=mongo; the memory store does not outlive the process.`,
}

var (
	userName     string
	userPassword string
	userRole     string
	newRole      string
)

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		a, _, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		user, err := a.Auth.CreateUser(ctx, userName, userPassword, userRole)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", user.Username, user.Role)
		return nil
	},
}

var userSetRoleCmd = &cobra.Command{
	Use:   "set-role",
	Short: "Change a user's role",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		a, _, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		if err := a.Auth.SetRole(ctx, userName, newRole); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", userName, newRole)
		return nil
	},
}

func init() {
	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userSetRoleCmd)

	userCreateCmd.Flags().StringVar(&userName, "username", "", "account name")
	userCreateCmd.Flags().StringVar(&userPassword, "password", "", "account password")
	userCreateCmd.Flags().StringVar(&userRole, "role", domain.RoleUser, "user or admin")
	_ = userCreateCmd.MarkFlagRequired("username")
	_ = userCreateCmd.MarkFlagRequired("password")

	userSetRoleCmd.Flags().StringVar(&userName, "username", "", "account name")
	userSetRoleCmd.Flags().StringVar(&newRole, "role", "", "user or admin")
	_ = userSetRoleCmd.MarkFlagRequired("username")
	_ = userSetRoleCmd.MarkFlagRequired("role")
}
