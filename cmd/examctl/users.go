package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/stemsi/examguard-backend/internal/repository"
)

func createTeacherCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-teacher",
		Short: "Create a teacher account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			p := newPrompter()
			name, _ := cmd.Flags().GetString("name")
			email, _ := cmd.Flags().GetString("email")
			if name, err = p.valueOr(name, "Name"); err != nil {
				return err
			}
			if email, err = p.valueOr(email, "Email"); err != nil {
				return err
			}
			password, err := p.newPassword()
			if err != nil {
				return err
			}

			t, err := e.auth.CreateTeacher(cmd.Context(), email, name, password)
			if err != nil {
				if errors.Is(err, repository.ErrDuplicateEmail) {
					return fmt.Errorf("teacher %s already exists", email)
				}
				return fmt.Errorf("create teacher: %w", err)
			}
			e.log.Info().Int("teacher_id", t.ID).Str("email", t.Email).Msg("Teacher created")
			fmt.Fprintf(cmd.OutOrStdout(), "Created teacher #%d (%s)\n", t.ID, t.Email)
			return nil
		},
	}
	cmd.Flags().String("name", "", "Display name")
	cmd.Flags().String("email", "", "Login email")
	return cmd
}

func createStudentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-student",
		Short: "Create a student account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			p := newPrompter()
			name, _ := cmd.Flags().GetString("name")
			username, _ := cmd.Flags().GetString("username")
			if name, err = p.valueOr(name, "Name"); err != nil {
				return err
			}
			if username, err = p.valueOr(username, "Username"); err != nil {
				return err
			}
			password, err := p.newPassword()
			if err != nil {
				return err
			}

			st, err := e.auth.CreateStudent(cmd.Context(), username, name, password)
			if err != nil {
				if errors.Is(err, repository.ErrDuplicateUsername) {
					return fmt.Errorf("student %s already exists", username)
				}
				return fmt.Errorf("create student: %w", err)
			}
			e.log.Info().Int("student_id", st.ID).Str("username", st.Username).Msg("Student created")
			fmt.Fprintf(cmd.OutOrStdout(), "Created student #%d (%s)\n", st.ID, st.Username)
			return nil
		},
	}
	cmd.Flags().String("name", "", "Display name")
	cmd.Flags().String("username", "", "Login username")
	return cmd
}

// seedStudentsCmd creates numbered demo accounts (<prefix>001, <prefix>002,
// ...) sharing one password. Existing usernames are skipped.
func seedStudentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed-students",
		Short: "Create a batch of numbered student accounts for rehearsals",
		RunE: func(cmd *cobra.Command, _ []string) error {
			count, _ := cmd.Flags().GetInt("count")
			prefix, _ := cmd.Flags().GetString("prefix")
			if count < 1 || count > 999 {
				return fmt.Errorf("--count must be between 1 and 999, got %d", count)
			}

			e, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			password, err := newPrompter().newPassword()
			if err != nil {
				return err
			}

			var created, skipped int
			for i := 1; i <= count; i++ {
				if err := cmd.Context().Err(); err != nil {
					return err
				}
				username := fmt.Sprintf("%s%03d", prefix, i)
				name := fmt.Sprintf("Student %03d", i)
				if _, err := e.auth.CreateStudent(cmd.Context(), username, name, password); err != nil {
					if errors.Is(err, repository.ErrDuplicateUsername) {
						skipped++
						continue
					}
					return fmt.Errorf("create %s: %w", username, err)
				}
				created++
			}

			e.log.Info().Int("created", created).Int("skipped", skipped).Msg("Students seeded")
			fmt.Fprintf(cmd.OutOrStdout(), "Created %d students, skipped %d existing\n", created, skipped)
			return nil
		},
	}
	cmd.Flags().Int("count", 50, "Number of accounts")
	cmd.Flags().String("prefix", "student", "Username prefix")
	return cmd
}
