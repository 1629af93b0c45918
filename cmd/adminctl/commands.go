package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/attaboy/siteadmin/internal/domain"
	"github.com/attaboy/siteadmin/internal/secret"
	"github.com/attaboy/siteadmin/internal/service"
	"github.com/spf13/cobra"
)

// ---------- status ----------

type statusReport struct {
	Exists       bool   `json:"exists"`
	AdminName    string `json:"adminName,omitempty"`
	AdminID      string `json:"adminId,omitempty"`
	Email        string `json:"email,omitempty"`
	Is2FAEnabled bool   `json:"is2FAEnabled"`
	Recovery     bool   `json:"recoveryConfigured"`
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether the admin account exists and whether 2FA is on",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			report := statusReport{Recovery: s.cfg.SuperActionCodeHash != ""}
			profile, err := s.admins.GetProfile(cmd.Context())
			switch {
			case err == nil:
				report.Exists = true
				report.AdminName = profile.AdminName
				report.AdminID = profile.AdminID
				report.Email = profile.Email
				report.Is2FAEnabled = profile.Is2FAEnabled
			case domain.CodeOf(err) != domain.CodeNotFound:
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			if !report.Exists {
				printWarning(out, "No admin account. Use 'adminctl init' to create one.")
				return nil
			}
			printProperties(out, [][2]string{
				{"Name", report.AdminName},
				{"Admin ID", report.AdminID},
				{"Email", report.Email},
				{"2FA", onOff(report.Is2FAEnabled)},
				{"Recovery", onOff(report.Recovery)},
			})
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// ---------- init ----------

func newInitCmd(opts *rootOptions) *cobra.Command {
	var in service.CreateAccountInput

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the admin account",
		Example: `  adminctl init --name "Site Owner" --id owner --email owner@example.com
  printf 'pw\npw\n' | adminctl init --name Owner --id owner --email owner@example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := newSecretReader(cmd).readConfirmed("Password")
			if err != nil {
				return err
			}
			in.Password = password
			in.ConfirmPassword = password

			s, err := openSession(cmd.Context(), cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			profile, err := s.admins.Create(cmd.Context(), in)
			if err != nil {
				return describe(err)
			}
			printSuccess(cmd.OutOrStdout(), "Created admin account %q", profile.AdminID)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.AdminName, "name", "", "Admin display name (required)")
	cmd.Flags().StringVar(&in.AdminID, "id", "", "Admin ID (required, immutable)")
	cmd.Flags().StringVar(&in.Email, "email", "", "Admin email address (required)")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("id")
	cmd.MarkFlagRequired("email")
	return cmd
}

// ---------- hash-secret ----------

func newHashSecretCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "hash-secret",
		Short: "Print a bcrypt hash of a recovery code for SUPER_ACTION_CODE_HASH",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			code, err := newSecretReader(cmd).readConfirmed("Recovery code")
			if err != nil {
				return err
			}
			if len(code) < 12 {
				return errors.New("recovery code must be at least 12 characters")
			}
			if err := secret.CheckLength(code); err != nil {
				return err
			}

			hash, err := secret.NewHasher(cfg.BcryptCost).Hash(code)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

// ---------- recover ----------

func newRecoverCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Disable 2FA with the recovery code",
		Long:  "Disables two-factor authentication on the admin account after checking the recovery code against SUPER_ACTION_CODE_HASH.",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			profile, err := s.admins.GetProfile(cmd.Context())
			if err != nil {
				return describe(err)
			}
			if !profile.Is2FAEnabled {
				printWarning(cmd.OutOrStdout(), "2FA is already disabled.")
				return nil
			}

			code, err := newSecretReader(cmd).read("Recovery code")
			if err != nil {
				return err
			}
			if err := s.twoFactor.DisableBySuperAction(cmd.Context(), profile.AdminID, code); err != nil {
				return describe(err)
			}
			printSuccess(cmd.OutOrStdout(), "2FA disabled for %q. Sign in with your password.", profile.AdminID)
			return nil
		},
	}
}

// describe flattens an AppError, including field messages, for the terminal.
func describe(err error) error {
	var appErr *domain.AppError
	if !errors.As(err, &appErr) {
		return err
	}
	if len(appErr.Fields) == 0 {
		return errors.New(appErr.Message)
	}
	msg := appErr.Message
	for _, field := range slices.Sorted(maps.Keys(appErr.Fields)) {
		msg += fmt.Sprintf("\n  %s: %s", field, appErr.Fields[field])
	}
	return errors.New(msg)
}
