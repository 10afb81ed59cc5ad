// medctl is the operator CLI for the medical history skill: it validates and
// uploads questionnaire documents and exports captured interview answers.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/spf13/cobra"

	"medhistory-skill/internal/integrations/paramstore"
	"medhistory-skill/internal/repository"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "medctl",
		Short:         "Manage questionnaires and captured answers for the medical history skill",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newValidateCmd(), newUploadCmd(), newExportCmd())
	return root
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <questionnaire.yaml>",
		Short: "Check a questionnaire document for structural errors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := loadQuestionnaireFile(args[0])
			if err != nil {
				return err
			}
			total := 0
			for _, s := range q.Sections {
				total += len(s.Questions)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d sections, %d questions\n", len(q.Sections), total)
			return nil
		},
	}
}

func newUploadCmd() *cobra.Command {
	var paramPrefix string
	cmd := &cobra.Command{
		Use:   "upload <questionnaire.yaml>",
		Short: "Validate a questionnaire and store it in Parameter Store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := loadQuestionnaireFile(args[0])
			if err != nil {
				return err
			}
			doc, err := questionnaireJSON(q)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			cfg, err := config.LoadDefaultConfig(ctx)
			if err != nil {
				return fmt.Errorf("load AWS config: %w", err)
			}
			ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
			if err != nil {
				return err
			}

			name := paramPrefix + "/questionnaire"
			if err := ssmClient.PutParameter(ctx, name, doc); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded questionnaire to %s\n", name)
			return nil
		},
	}
	cmd.Flags().StringVar(&paramPrefix, "param-prefix", "/medhistory", "Parameter Store prefix the skill reads from")
	return cmd
}

func newExportCmd() *cobra.Command {
	var (
		tableName string
		sessionID int
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print the answers captured in one interview session as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			if sessionID <= 0 {
				return fmt.Errorf("--session must be a positive session id")
			}

			ctx := cmd.Context()
			cfg, err := config.LoadDefaultConfig(ctx)
			if err != nil {
				return fmt.Errorf("load AWS config: %w", err)
			}
			stateClient, err := repository.New(awsdynamodb.NewFromConfig(cfg), tableName)
			if err != nil {
				return err
			}

			answers, err := stateClient.GetSessionAnswers(ctx, sessionID)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(answers)
		},
	}
	cmd.Flags().StringVar(&tableName, "table", "", "DynamoDB table holding interview state")
	cmd.Flags().IntVar(&sessionID, "session", 0, "session id to export")
	cobra.CheckErr(cmd.MarkFlagRequired("table"))
	return cmd
}
