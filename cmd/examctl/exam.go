package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/stemsi/examguard-backend/internal/examform"
	"github.com/stemsi/examguard-backend/internal/i18n"
	"github.com/stemsi/examguard-backend/internal/model"
	"github.com/stemsi/examguard-backend/internal/questionbank"
	"github.com/stemsi/examguard-backend/internal/response"
	"github.com/stemsi/examguard-backend/internal/service"
)

// login prompts for the teacher's password and checks it.
func login(cmd *cobra.Command, e *env, p *prompter) (*model.Teacher, error) {
	email, _ := cmd.Flags().GetString("email")
	email, err := p.valueOr(email, "Email")
	if err != nil {
		return nil, err
	}
	password, err := p.password("Password")
	if err != nil {
		return nil, err
	}

	teacher, err := e.auth.AuthenticateTeacher(cmd.Context(), email, password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return nil, errors.New("invalid email or password")
		}
		return nil, err
	}
	return teacher, nil
}

func createExamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-exam",
		Short: "Create a scheduled exam interactively",
		Long: "Prompts for title, course, duration and total points, re-prompting\n" +
			"until the exam is stored or you give up.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			if err := i18n.Init(e.cfg.AppLang, e.log); err != nil {
				return fmt.Errorf("init i18n: %w", err)
			}
			ctx := i18n.WithLocalizer(cmd.Context(), i18n.NewLocalizer(e.cfg.AppLang))

			p := newPrompter()
			teacher, err := login(cmd, e, p)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			notifier := examform.NotifierFunc(func(sev examform.Severity, msg string) {
				fmt.Fprintf(out, "[%s] %s\n", sev, msg)
			})
			form := examform.New(e.examService(), notifier, teacher.ID, examform.Messages{
				Created:       i18n.T(ctx, "ExamCreated"),
				MissingFields: i18n.T(ctx, "ExamFormMissingFields"),
				InvalidNumber: i18n.T(ctx, "ExamFormInvalidNumber"),
				CreateFailed:  i18n.T(ctx, string(response.ErrExamCreateFailed)),
			})

			exam, err := runExamForm(ctx, form, p)
			if err != nil {
				return err
			}
			if exam == nil {
				fmt.Fprintln(out, "Cancelled.")
				return nil
			}
			fmt.Fprintf(out, "Exam %s (%s, %d min, %d pts) is scheduled.\n",
				exam.ID, exam.Title, exam.DurationMinutes, exam.TotalPoints)
			return nil
		},
	}
	cmd.Flags().String("email", "", "Teacher email")
	return cmd
}

// runExamForm drives the dialog until it closes. A nil exam with a nil
// error means the user backed out.
func runExamForm(ctx context.Context, form *examform.Form, p *prompter) (*model.Exam, error) {
	fields := []struct{ name, label string }{
		{examform.FieldTitle, "Title"},
		{examform.FieldCourse, "Course"},
		{examform.FieldDuration, "Duration (minutes)"},
		{examform.FieldPoints, "Total points"},
	}

	form.Open()
	for form.IsOpen() {
		d := form.Draft()
		current := map[string]string{
			examform.FieldTitle:    d.Title,
			examform.FieldCourse:   d.Course,
			examform.FieldDuration: d.Duration,
			examform.FieldPoints:   d.Points,
		}
		for _, f := range fields {
			label := f.label
			if v := current[f.name]; v != "" {
				label = fmt.Sprintf("%s [%s]", f.label, v)
			}
			v, err := p.line(label)
			if err != nil {
				if errors.Is(err, io.EOF) {
					form.Close()
					return nil, nil
				}
				return nil, err
			}
			if v != "" {
				_ = form.Set(f.name, v)
			}
		}

		exam, err := form.Submit(ctx)
		if err == nil {
			return exam, nil
		}

		var ve *examform.ValidationError
		if errors.As(err, &ve) {
			printFields(p.out, ve.Fields)
			continue
		}
		if !errors.Is(err, examform.ErrCreateFailed) {
			return nil, err
		}
		fmt.Fprintf(p.out, "error: %v\n", errors.Unwrap(err))
		again, err := p.line("Try again? [Y/n]")
		if err != nil || strings.EqualFold(again, "n") {
			form.Close()
		}
	}
	return nil, nil
}

func printFields(w io.Writer, fields map[string]string) {
	names := make([]string, 0, len(fields))
	for n := range fields {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(w, "  %s: %s\n", n, fields[n])
	}
}

func seedQuestionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed-questions",
		Short: "Import questions from a YAML question bank into a scheduled exam",
		Example: "  examctl seed-questions --exam-id 3f0c... --email t@school.id --file bank.yaml\n" +
			"  examctl seed-questions --file bank.yaml --dry-run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("file")
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			bank, err := readBank(path)
			if err != nil {
				return err
			}
			questions := bank.ToQuestions()
			out := cmd.OutOrStdout()
			if dryRun {
				total := 0
				for _, q := range questions {
					total += q.Points
				}
				fmt.Fprintf(out, "%s: %d questions, %d points\n", path, len(questions), total)
				return nil
			}

			rawID, _ := cmd.Flags().GetString("exam-id")
			examID, err := uuid.Parse(rawID)
			if err != nil {
				return fmt.Errorf("--exam-id: %w", err)
			}

			e, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			teacher, err := login(cmd, e, newPrompter())
			if err != nil {
				return err
			}

			if err := e.examService().ImportQuestions(cmd.Context(), examID, teacher.ID, questions); err != nil {
				switch {
				case errors.Is(err, service.ErrExamNotFound), errors.Is(err, service.ErrNotExamOwner):
					return fmt.Errorf("exam %s not found for %s", examID, teacher.Email)
				case errors.Is(err, service.ErrExamNotScheduled):
					return errors.New("questions can only be added while the exam is scheduled")
				}
				return fmt.Errorf("import questions: %w", err)
			}
			e.log.Info().Str("exam_id", examID.String()).Int("count", len(questions)).Msg("Questions imported")
			fmt.Fprintf(out, "Imported %d questions into %s\n", len(questions), examID)
			return nil
		},
	}
	f := cmd.Flags()
	f.String("file", "", "Question bank YAML file")
	f.String("exam-id", "", "Target exam UUID")
	f.String("email", "", "Teacher email")
	f.Bool("dry-run", false, "Validate the file without touching the database")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func readBank(path string) (*questionbank.Bank, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return questionbank.Parse(fh)
}
