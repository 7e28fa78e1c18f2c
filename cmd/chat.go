package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spigell/resume-butler/internal/compose"
	"github.com/spigell/resume-butler/internal/export"
	"github.com/spigell/resume-butler/internal/logger"
	"github.com/spigell/resume-butler/internal/session"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptBack = "back"

	chatHelp = `Commands:
  /status          show how complete the profile is
  /upload <file>   load an existing resume (txt, md, pdf, docx)
  /jd <file|url>   set the job description
  /match           build a match report for the resume and job description
  /export          download the resume in a chosen format
  /quit            leave the chat
Anything else is sent to the assistant.`
)

var errExit = errors.New("exit requested")

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the assistant in the terminal",
	Run: func(cmd *cobra.Command, _ []string) {
		chat(cmd)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringP("output-dir", "o", ".", "directory for exported files")
	chatCmd.Flags().Bool("no-transcript", false, "do not record the conversation")
}

func chat(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// stdout belongs to the conversation.
	logger, err := logger.NewWithOutput(viper.GetBool("json"), viper.GetBool("debug"), "stderr")
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	logger.Info("starting the resume-butler chat", zap.String("version", version))

	noTranscript, _ := cmd.Flags().GetBool("no-transcript")
	a, err := newApplication(ctx, logger, !noTranscript)
	if err != nil {
		logger.Fatal("initializing the assistant", zap.Error(err))
	}
	defer a.Close()

	sess, err := a.sessions.Create(ctx)
	if err != nil {
		logger.Fatal("creating a session", zap.Error(err))
	}
	defer a.sessions.Close(context.Background(), sess.ID)

	outDir, _ := cmd.Flags().GetString("output-dir")
	c := &chatLoop{app: a, sess: sess, outDir: outDir, logger: logger}

	fmt.Println("Hi! I can help you create a new resume, rewrite an existing one or check it against a job. Type /help for commands.")

	for {
		input := promptui.Prompt{Label: "you"}
		line, err := input.Run()
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return
			}
			logger.Fatal("reading input", zap.Error(err))
		}

		if err := c.handle(ctx, strings.TrimSpace(line)); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			fmt.Printf("error: %s\n", err)
		}
	}
}

type chatLoop struct {
	app    *application
	sess   *session.Session
	outDir string
	logger *zap.Logger
}

func (c *chatLoop) handle(ctx context.Context, line string) error {
	if line == "" {
		return nil
	}

	if !strings.HasPrefix(line, "/") {
		resp, err := c.app.assistant.ProcessMessage(ctx, c.sess, line)
		if err != nil {
			return err
		}
		return c.show(resp)
	}

	command, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch command {
	case "/quit", "/exit":
		return errExit
	case "/help":
		fmt.Println(chatHelp)
	case "/status":
		st := c.app.assistant.CompletionStatus(c.sess)
		fmt.Printf("%s\nmode: %s, missing: %s\n", compose.ProgressLine(st.Percent/100), st.Mode, strings.Join(st.Missing, ", "))
	case "/upload":
		if arg == "" {
			return errors.New("usage: /upload <file>")
		}
		data, err := os.ReadFile(arg)
		if err != nil {
			return fmt.Errorf("reading %s: %w", arg, err)
		}
		st, err := c.app.assistant.Upload(ctx, c.sess, filepath.Base(arg), data)
		if err != nil {
			return err
		}
		fmt.Printf("Resume loaded. %s\n", compose.ProgressLine(st.Percent/100))
	case "/jd":
		if arg == "" {
			return errors.New("usage: /jd <file|url>")
		}
		text, err := c.app.jobs.Fetch(ctx, arg)
		if err != nil {
			return err
		}
		if err := c.app.assistant.SetJobDescription(c.sess, text); err != nil {
			return err
		}
		fmt.Printf("Job description stored (%d characters).\n", len(text))
	case "/match":
		resp, err := c.app.assistant.Match(ctx, c.sess)
		if err != nil {
			return err
		}
		return c.show(resp)
	case "/export":
		return c.export(ctx, arg)
	default:
		return fmt.Errorf("unknown command %s, type /help", command)
	}

	return nil
}

func (c *chatLoop) export(ctx context.Context, format string) error {
	if format == "" {
		items := make([]string, 0, len(export.Formats)+1)
		for _, f := range export.Formats {
			items = append(items, string(f))
		}

		sel := promptui.Select{
			Label: "Choose a format and press ENTER",
			Items: append(items, PromptBack),
		}
		_, choice, err := sel.Run()
		if err != nil {
			return err
		}
		if choice == PromptBack {
			return nil
		}
		format = choice
	}

	artifact, err := c.app.assistant.Export(ctx, c.sess, format)
	if err != nil {
		return err
	}
	return c.show(compose.Response{Artifact: artifact})
}

func (c *chatLoop) show(resp compose.Response) error {
	if resp.Text != "" {
		fmt.Printf("\n%s\n\n", resp.Text)
	}
	if resp.Artifact == nil {
		return nil
	}

	path := filepath.Join(c.outDir, resp.Artifact.Filename)
	if err := os.WriteFile(path, resp.Artifact.Content, 0o644); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	c.logger.Debug("artifact saved", zap.String("path", path), zap.String("mime", resp.Artifact.MIME))
	fmt.Printf("Saved %s\n", path)
	return nil
}
