package cmd

import (
	"errors"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/generative-ai-inc/war-machine/internal/secrets"
)

// promptSecret asks for a secret value without echoing it.
var promptSecret = func(name string) (string, error) {
	var value string
	prompt := &survey.Password{Message: fmt.Sprintf("Value for %s:", name)}
	if err := survey.AskOne(prompt, &value, survey.WithValidator(survey.Required)); err != nil {
		return "", fmt.Errorf("survey failed: %w", err)
	}
	return value, nil
}

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Add, remove or list secrets",
		Long: `Secrets are stored outside of any project, in the operating system
keyring (or $XDG_CONFIG_HOME/war-machine/secrets.env when no keyring is
available), and are injected into every run. Variables set in your shell or
.env file take precedence over them.`,
	}
	cmd.AddCommand(newSecretAddCmd(), newSecretRemoveCmd(), newSecretListCmd())
	return cmd
}

func newSecretAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add NAME [VALUE]",
		Short: "Add a secret, prompting for the value when it is omitted",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if err := secrets.ValidateName(name); err != nil {
				return err
			}

			var value string
			if len(args) == 2 {
				value = args[1]
			} else {
				v, err := promptSecret(name)
				if err != nil {
					return err
				}
				value = v
			}

			store, err := secrets.NewStore()
			if err != nil {
				return err
			}
			if err := store.Set(name, value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Secret %s saved\n", name)
			return nil
		},
	}
}

func newSecretRemoveCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "remove [NAME]",
		Short: "Remove a secret",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return errors.New("pass either a secret name or --all")
			}

			store, err := secrets.NewStore()
			if err != nil {
				return err
			}
			if all {
				if err := store.Clear(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "All secrets removed")
				return nil
			}
			if err := store.Remove(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Secret %s removed\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Remove all secrets")
	return cmd
}

func newSecretListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the names of your secrets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := secrets.NewStore()
			if err != nil {
				return err
			}
			names, err := secrets.Names(store)
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No secrets stored")
				return nil
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
