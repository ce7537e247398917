package cmd

import (
	"context"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/abhisek/lessonstream/internal/app"
	"github.com/abhisek/lessonstream/internal/session"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Start a lesson in the terminal",
	RunE:  runPlay,
}

func init() {
	addPlayFlags(playCmd)
}

func addPlayFlags(c *cobra.Command) {
	c.Flags().String("topic", "", "Start straight away on this topic")
	c.Flags().Int("sections", 0, "Number of sections (default from config)")
}

func runPlay(cmd *cobra.Command, args []string) error {
	rt, err := setup(cmd, setupOpts{Quiet: true})
	if err != nil {
		return err
	}
	defer rt.Close(context.Background())

	topic, _ := cmd.Flags().GetString("topic")
	sections, _ := cmd.Flags().GetInt("sections")
	if sections <= 0 {
		sections = rt.Config.Curriculum.Sections
	}

	deps := rt.SessionDeps()
	return app.Run(app.Options{
		DefaultSections: sections,
		Topic:           topic,
		NewSession: func(n int) *session.Controller {
			return session.NewController(uuid.NewString(), rt.Config.Session(n), deps)
		},
	})
}
