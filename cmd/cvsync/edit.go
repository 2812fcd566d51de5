package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/cv-sync/internal/cvstate"
	"github.com/jonathan/cv-sync/internal/types"
)

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit the CV",
	Long: `Apply one edit to the local CV. The edit is validated, saved to the data
directory and pushed to the server, or queued when the server is unreachable.`,
}

var editPersonalCmd = &cobra.Command{
	Use:   "personal",
	Short: "Update personal info fields",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var patch cvstate.PersonalInfoPatch
		fields := []struct {
			flag string
			dst  **string
		}{
			{"first-name", &patch.FirstName},
			{"last-name", &patch.LastName},
			{"email", &patch.Email},
			{"phone", &patch.Phone},
			{"location", &patch.Location},
			{"summary", &patch.Summary},
			{"date-of-birth", &patch.DateOfBirth},
		}
		changed := false
		for _, f := range fields {
			if !cmd.Flags().Changed(f.flag) {
				continue
			}
			v, _ := cmd.Flags().GetString(f.flag)
			*f.dst = &v
			changed = true
		}
		if !changed {
			return fmt.Errorf("no fields given; see --help")
		}
		return applyEdit(cmd, cvstate.UpdatePersonalInfo{Patch: patch})
	},
}

var editAddEducationCmd = &cobra.Command{
	Use:   "add-education",
	Short: "Add an education entry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		f := cmd.Flags()
		edu := types.Education{
			Institution:  mustString(f.GetString("institution")),
			Degree:       mustString(f.GetString("degree")),
			FieldOfStudy: mustString(f.GetString("field")),
			StartDate:    mustString(f.GetString("start")),
			EndDate:      mustString(f.GetString("end")),
			Current:      mustBool(f.GetBool("current")),
			Description:  mustString(f.GetString("description")),
		}
		return applyEdit(cmd, cvstate.AddEducation{Education: edu})
	},
}

var editAddExperienceCmd = &cobra.Command{
	Use:   "add-experience",
	Short: "Add a work experience entry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		f := cmd.Flags()
		exp := types.WorkExperience{
			Company:      mustString(f.GetString("company")),
			Position:     mustString(f.GetString("position")),
			StartDate:    mustString(f.GetString("start")),
			EndDate:      mustString(f.GetString("end")),
			Current:      mustBool(f.GetBool("current")),
			Description:  mustString(f.GetString("description")),
			Achievements: splitList(mustString(f.GetString("achievements")), ";"),
		}
		return applyEdit(cmd, cvstate.AddExperience{Experience: exp})
	},
}

var editAddProjectCmd = &cobra.Command{
	Use:   "add-project",
	Short: "Add a project",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		f := cmd.Flags()
		p := types.Project{
			Name:         mustString(f.GetString("name")),
			Description:  mustString(f.GetString("description")),
			Technologies: splitList(mustString(f.GetString("tech")), ","),
			URL:          mustString(f.GetString("url")),
			StartDate:    mustString(f.GetString("start")),
			EndDate:      mustString(f.GetString("end")),
		}
		return applyEdit(cmd, cvstate.AddProject{Project: p})
	},
}

var editAddSkillCmd = &cobra.Command{
	Use:   "add-skill NAME",
	Short: "Add a skill",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetString("level")
		return applyEdit(cmd, cvstate.AddSkill{Skill: types.Skill{Name: args[0], Level: types.SkillLevel(level)}})
	},
}

var editSkillLevelCmd = &cobra.Command{
	Use:   "skill-level NAME LEVEL",
	Short: "Change the level of a skill",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return applyEdit(cmd, cvstate.UpdateSkillLevel{Name: args[0], Level: types.SkillLevel(args[1])})
	},
}

var editRemoveSkillCmd = &cobra.Command{
	Use:   "remove-skill NAME",
	Short: "Remove a skill by name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return applyEdit(cmd, cvstate.RemoveSkill{Name: args[0]})
	},
}

var editAddLanguageCmd = &cobra.Command{
	Use:   "add-language NAME",
	Short: "Add a spoken language",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prof, _ := cmd.Flags().GetString("proficiency")
		return applyEdit(cmd, cvstate.AddLanguage{Language: types.Language{Name: args[0], Proficiency: prof}})
	},
}

var editAddLinkCmd = &cobra.Command{
	Use:   "add-link PLATFORM URL",
	Short: "Add a social link",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return applyEdit(cmd, cvstate.AddSocialLink{Link: types.SocialLink{Platform: args[0], URL: args[1]}})
	},
}

var editInterestsCmd = &cobra.Command{
	Use:   "interests [INTEREST...]",
	Short: "Replace the interest list",
	RunE: func(cmd *cobra.Command, args []string) error {
		return applyEdit(cmd, cvstate.SetInterests{Interests: append([]string{}, args...)})
	},
}

var editRemoveCmd = &cobra.Command{
	Use:       "remove SECTION INDEX",
	Short:     "Remove an entry by position (education, experience, project, language, link)",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"education", "experience", "project", "language", "link"},
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid index %q", args[1])
		}
		var action cvstate.Action
		switch args[0] {
		case "education":
			action = cvstate.RemoveEducation{Index: index}
		case "experience":
			action = cvstate.RemoveExperience{Index: index}
		case "project":
			action = cvstate.RemoveProject{Index: index}
		case "language":
			action = cvstate.RemoveLanguage{Index: index}
		case "link":
			action = cvstate.RemoveSocialLink{Index: index}
		default:
			return fmt.Errorf("unknown section %q", args[0])
		}
		return applyEdit(cmd, action)
	},
}

func init() {
	pf := editPersonalCmd.Flags()
	pf.String("first-name", "", "First name")
	pf.String("last-name", "", "Last name")
	pf.String("email", "", "Contact email")
	pf.String("phone", "", "Phone number")
	pf.String("location", "", "City or region")
	pf.String("summary", "", "Short professional summary")
	pf.String("date-of-birth", "", "Date of birth (YYYY-MM-DD)")

	ef := editAddEducationCmd.Flags()
	ef.String("institution", "", "School or university (required)")
	ef.String("degree", "", "Degree")
	ef.String("field", "", "Field of study")
	ef.String("start", "", "Start date")
	ef.String("end", "", "End date")
	ef.Bool("current", false, "Still studying here")
	ef.String("description", "", "Description")

	xf := editAddExperienceCmd.Flags()
	xf.String("company", "", "Employer (required)")
	xf.String("position", "", "Job title (required)")
	xf.String("start", "", "Start date")
	xf.String("end", "", "End date")
	xf.Bool("current", false, "Still working here")
	xf.String("description", "", "Description")
	xf.String("achievements", "", "Achievements separated by ';'")

	jf := editAddProjectCmd.Flags()
	jf.String("name", "", "Project name (required)")
	jf.String("description", "", "Description")
	jf.String("tech", "", "Technologies separated by ','")
	jf.String("url", "", "Project URL")
	jf.String("start", "", "Start date")
	jf.String("end", "", "End date")

	editAddSkillCmd.Flags().String("level", "", "beginner, intermediate, advanced or expert")
	editAddLanguageCmd.Flags().String("proficiency", "", "basic, conversational, fluent or native")

	editCmd.AddCommand(
		editPersonalCmd,
		editAddEducationCmd,
		editAddExperienceCmd,
		editAddProjectCmd,
		editAddSkillCmd,
		editSkillLevelCmd,
		editRemoveSkillCmd,
		editAddLanguageCmd,
		editAddLinkCmd,
		editInterestsCmd,
		editRemoveCmd,
	)
	rootCmd.AddCommand(editCmd)
}

// applyEdit validates and applies one action, saves it right away and prints the outcome.
func applyEdit(cmd *cobra.Command, action cvstate.Action) error {
	return withEngine(cmd, func(_ context.Context, a *app) error {
		before := a.engine.Container().Snapshot().Revision
		snap, err := a.engine.Apply(action)
		if err != nil {
			var ve *cvstate.ValidationError
			if errors.As(err, &ve) {
				a.printer.PrintValidationErrors(a.engine.Session().ValidationErrors)
			}
			return err
		}
		if snap.Revision == before {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Nothing changed")
			return nil
		}

		a.engine.Flush()
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Completion: %d%%\n", a.engine.Document().CompletionPercentage)
		a.printer.PrintSyncStatus(a.engine.Status(), a.engine.PendingUpdates())
		return nil
	})
}

func splitList(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// mustString and mustBool drop the lookup error of flags registered in init.
func mustString(v string, _ error) string { return v }

func mustBool(v bool, _ error) bool { return v }
