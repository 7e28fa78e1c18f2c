package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spigell/resume-butler/internal/export"
	"github.com/spigell/resume-butler/internal/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Check how well a resume fits a job description",
	Run: func(cmd *cobra.Command, _ []string) {
		matchResume(cmd)
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().StringP("resume", "r", "", "resume file (txt, md, pdf, docx)")
	matchCmd.Flags().StringP("job", "J", "", "job description file or http(s) url")
	matchCmd.Flags().StringP("output", "o", "", "write the report to this file; the extension selects the format")

	matchCmd.MarkFlagRequired("resume")
	matchCmd.MarkFlagRequired("job")
}

func matchResume(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.NewWithOutput(viper.GetBool("json"), viper.GetBool("debug"), "stderr")
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	a, err := newApplication(ctx, logger, false)
	if err != nil {
		logger.Fatal("initializing the assistant", zap.Error(err))
	}
	defer a.Close()

	resumePath, _ := cmd.Flags().GetString("resume")
	jobSource, _ := cmd.Flags().GetString("job")

	var resume, job string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		data, err := os.ReadFile(resumePath)
		if err != nil {
			return fmt.Errorf("reading resume: %w", err)
		}
		resume, err = a.parser.Parse(gctx, filepath.Base(resumePath), data)
		if err != nil {
			return fmt.Errorf("parsing resume: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		job, err = a.jobs.Fetch(gctx, jobSource)
		if err != nil {
			return fmt.Errorf("loading job description: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("preparing the match", zap.Error(err))
	}

	logger.Info("matching resume",
		zap.Int("resume_length", len(resume)),
		zap.Int("job_length", len(job)),
	)

	assessment, err := a.matcher.Evaluate(ctx, resume, job)
	if err != nil {
		logger.Fatal("matching resume", zap.Error(err))
	}

	report := assessment.Report()

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		fmt.Println(report)
		return
	}

	format, err := export.ParseFormat(filepath.Ext(output))
	if err != nil {
		logger.Fatal("choosing the report format", zap.Error(err))
	}

	data, err := export.NewRenderer().Export(report, format)
	if err != nil {
		logger.Fatal("rendering the report", zap.Error(err))
	}

	if err := os.WriteFile(output, data, 0o644); err != nil {
		logger.Fatal("writing the report", zap.Error(err))
	}

	logger.Info("report saved", zap.String("path", output), zap.Bool("fit", assessment.Fit))
}
