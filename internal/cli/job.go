package cli

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/me/hireflow/pkg/model"
)

func newJobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Manage job postings",
	}
	cmd.AddCommand(
		newJobCreateCmd(),
		newJobListCmd(),
		newJobStatusCmd(),
		newJobResultsCmd(),
		newJobCloseCmd(),
	)
	return cmd
}

func newJobCreateCmd() *cobra.Command {
	var (
		id        string
		title     string
		enrolled  int
		threshold int
		topN      int
		answerKey []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a job posting with a fixed candidate pool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]any{
				"title":          title,
				"enrolled_count": enrolled,
			}
			if id != "" {
				req["id"] = id
			}
			if threshold > 0 {
				req["threshold"] = threshold
			}
			if topN > 0 {
				req["top_n"] = topN
			}
			if len(answerKey) > 0 {
				req["answer_key"] = answerKey
			}

			resp, err := client.Post(cmd.Context(), "/api/v1/jobs", req)
			if err != nil {
				return fmt.Errorf("create job: %w", err)
			}
			var job model.JobPosting
			if err := resp.decode(&job); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Job created: %s\n", job.ID)
			fmt.Fprintf(out, "  Title:     %s\n", job.Title)
			fmt.Fprintf(out, "  Enrolled:  %d\n", job.EnrolledCount)
			fmt.Fprintf(out, "  Threshold: %d\n", job.Threshold)
			fmt.Fprintf(out, "  Top N:     %d\n", job.TopN)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Job ID (generated when empty)")
	cmd.Flags().StringVar(&title, "title", "", "Job title")
	cmd.Flags().IntVar(&enrolled, "enrolled", 0, "Number of candidates who received the assessment")
	cmd.Flags().IntVar(&threshold, "threshold", 0, "Small-pool threshold (server default when 0)")
	cmd.Flags().IntVar(&topN, "top-n", 0, "Candidates invited after a full batch (server default when 0)")
	cmd.Flags().StringSliceVar(&answerKey, "answer-key", nil, "Correct answers, in question order")
	cmd.MarkFlagRequired("title")
	cmd.MarkFlagRequired("enrolled")
	return cmd
}

func newJobListCmd() *cobra.Command {
	var (
		status string
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List job postings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if status != "" {
				q.Set("status", status)
			}
			q.Set("limit", strconv.Itoa(limit))
			q.Set("offset", strconv.Itoa(offset))

			resp, err := client.Get(cmd.Context(), "/api/v1/jobs?"+q.Encode())
			if err != nil {
				return fmt.Errorf("list jobs: %w", err)
			}
			var jobs []model.JobPosting
			if err := resp.decode(&jobs); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "No jobs found.")
				return nil
			}
			fmt.Fprintf(out, "%-42s  %-8s  %-8s  %s\n", "ID", "STATUS", "ENROLLED", "TITLE")
			fmt.Fprintf(out, "%-42s  %-8s  %-8s  %s\n", "--", "------", "--------", "-----")
			for _, j := range jobs {
				fmt.Fprintf(out, "%-42s  %-8s  %-8d  %s\n", j.ID, j.Status, j.EnrolledCount, j.Title)
			}
			if resp.Pagination != nil && resp.Pagination.HasMore {
				fmt.Fprintf(out, "\n(%d of %d shown)\n", len(jobs), resp.Pagination.Total)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (active, closed)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of jobs")
	cmd.Flags().IntVar(&offset, "offset", 0, "Offset into the job list")
	return cmd
}

func newJobStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <job_id>",
		Short: "Show completion progress, state and invitations of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get(cmd.Context(), "/api/v1/jobs/"+url.PathEscape(args[0]))
			if err != nil {
				return fmt.Errorf("get job: %w", err)
			}
			var p model.JobProgress
			if err := resp.decode(&p); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Job: %s (%s)\n", p.Job.ID, p.Job.Title)
			fmt.Fprintf(out, "  Status:      %s\n", p.Job.Status)
			fmt.Fprintf(out, "  State:       %s\n", p.State)
			fmt.Fprintf(out, "  Completed:   %d/%d\n", p.CompletedCount, p.Job.EnrolledCount)
			fmt.Fprintf(out, "  Invitations: %d\n", p.InvitationCount)
			for _, inv := range p.Invitations {
				fmt.Fprintf(out, "    - #%d %s (%s, %s)\n", inv.Rank, inv.CandidateID, inv.Reason,
					inv.SentAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}

func newJobResultsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "results <job_id>",
		Short: "Show assessment results in rank order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get(cmd.Context(), "/api/v1/jobs/"+url.PathEscape(args[0])+"/results")
			if err != nil {
				return fmt.Errorf("get results: %w", err)
			}
			var data struct {
				Summary model.ResultSummary  `json:"summary"`
				Results []model.RankedResult `json:"results"`
			}
			if err := resp.decode(&data); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(data.Results) == 0 {
				fmt.Fprintln(out, "No results yet.")
				return nil
			}
			fmt.Fprintf(out, "%-4s  %-24s  %-6s  %s\n", "RANK", "CANDIDATE", "SCORE", "COMPLETED")
			for _, r := range data.Results {
				fmt.Fprintf(out, "%-4d  %-24s  %-6.1f  %s\n", r.Rank, r.CandidateID, r.Score,
					r.CompletedAt.Format("2006-01-02 15:04:05"))
			}
			s := data.Summary
			fmt.Fprintf(out, "\n%d results, %d invited (high %.1f, low %.1f, mean %.1f)\n",
				s.Total, s.Invited, s.Highest, s.Lowest, s.Mean)
			return nil
		},
	}
}

func newJobCloseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "close <job_id>",
		Short: "Stop accepting submissions for a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := client.Post(cmd.Context(), "/api/v1/jobs/"+url.PathEscape(args[0])+"/close", nil); err != nil {
				return fmt.Errorf("close job: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s closed\n", args[0])
			return nil
		},
	}
}
