package cli

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/me/hireflow/pkg/model"
)

// submissionFile is the YAML form accepted by "submit --file".
type submissionFile struct {
	CandidateID    string   `yaml:"candidate_id"`
	CandidateEmail string   `yaml:"candidate_email"`
	Score          *float64 `yaml:"score"`
	Answers        []string `yaml:"answers"`
}

func newSubmitCmd() *cobra.Command {
	var (
		file      string
		candidate string
		email     string
		score     float64
		answers   []string
	)

	cmd := &cobra.Command{
		Use:   "submit <job_id>",
		Short: "Register a completed assessment",
		Long: "Register a completed assessment for a job. Give either --score or --answers;\n" +
			"answers are graded against the job's answer key.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := args[0]

			sub := model.Submission{JobID: jobID}
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("read submission: %w", err)
				}
				var f submissionFile
				if err := yaml.Unmarshal(data, &f); err != nil {
					return fmt.Errorf("parse submission: %w", err)
				}
				sub.CandidateID, sub.CandidateEmail = f.CandidateID, f.CandidateEmail
				sub.Score, sub.Answers = f.Score, f.Answers
				logger.Debug("parsed submission file", "path", file, "candidate_id", f.CandidateID)
			}
			if candidate != "" {
				sub.CandidateID = candidate
			}
			if email != "" {
				sub.CandidateEmail = email
			}
			if cmd.Flags().Changed("score") {
				sub.Score = &score
			}
			if len(answers) > 0 {
				sub.Answers = answers
			}
			if sub.CandidateID == "" {
				return errors.New("candidate ID is required (--candidate or candidate_id in --file)")
			}

			resp, err := client.Post(cmd.Context(), "/api/v1/jobs/"+url.PathEscape(jobID)+"/submissions", sub)
			return printReportResponse(cmd.OutOrStdout(), resp, err, "submit")
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with the submission")
	cmd.Flags().StringVar(&candidate, "candidate", "", "Candidate ID")
	cmd.Flags().StringVar(&email, "email", "", "Candidate email address")
	cmd.Flags().Float64Var(&score, "score", 0, "Assessment score (0-100)")
	cmd.Flags().StringSliceVar(&answers, "answers", nil, "Submitted answers, in question order")
	return cmd
}

func newDispatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch <job_id>",
		Short: "Retry invitations still lacking a record",
		Long: "Re-run recipient selection for a job whose decision has fired and send the\n" +
			"invitations that were not recorded, e.g. after a mail transport failure.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Post(cmd.Context(), "/api/v1/jobs/"+url.PathEscape(args[0])+"/dispatch", nil)
			return printReportResponse(cmd.OutOrStdout(), resp, err, "dispatch")
		},
	}
}

// printReportResponse prints the outcome report carried by resp. A rejected
// report is printed before the error is returned.
func printReportResponse(out io.Writer, resp *apiResponse, err error, action string) error {
	if resp == nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	var report model.OutcomeReport
	if derr := resp.decode(&report); derr == nil {
		printReport(out, &report)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	return nil
}

func printReport(out io.Writer, r *model.OutcomeReport) {
	fmt.Fprintf(out, "Outcome: %s\n", r.Outcome)
	if r.Decision != "" {
		fmt.Fprintf(out, "  Decision: %s\n", r.Decision)
	}
	if r.State != "" {
		fmt.Fprintf(out, "  State:    %s\n", r.State)
	}
	fmt.Fprintf(out, "  Progress: %s\n", r.Progress())
	if r.Message != "" {
		fmt.Fprintf(out, "  Message:  %s\n", r.Message)
	}
	for _, rr := range r.Recipients {
		line := fmt.Sprintf("    - #%d %s (%.1f): %s", rr.Rank, rr.CandidateID, rr.Score, rr.Status)
		if rr.Error != nil {
			line += " - " + rr.Error.Message
		}
		fmt.Fprintln(out, line)
	}
}
