package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/caffeineduck/hookwarden/hooks"
)

type dispatchFlags struct {
	session    string
	tool       string
	args       string
	output     string
	failed     bool
	duration   time.Duration
	role       string
	content    string
	permission string
	resource   string
	reason     string
	model      string
	agent      string
}

func newDispatchCmd(a *app) *cobra.Command {
	var f dispatchFlags

	cmd := &cobra.Command{
		Use:   "dispatch <point>",
		Short: "Load the plugin directory and fire one hook point",
		Long: `Load every plugin in the plugin directory, fire one hook point with an
input built from flags, and print the final output as JSON.

Points: tool.execute.before, tool.execute.after, chat.message,
permission.ask, session.start, session.end.

Examples:
  hookwarden dispatch tool.execute.before --tool bash --args '{"command":"ls"}'
  hookwarden dispatch permission.ask --permission file_write --resource /etc/hosts`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			point, err := hooks.ParsePoint(args[0])
			if err != nil {
				return err
			}
			if f.args != "" && !gjson.Valid(f.args) {
				return fmt.Errorf("--args is not valid JSON")
			}

			rt, err := newRuntime(a.cfg, a.log)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			loaded, err := rt.manager.LoadDir(ctx, a.cfg.Plugins.Dir)
			if err != nil {
				a.log.Warn().Err(err).Msg("some plugins failed to load")
			}
			a.log.Debug().Int("plugins", len(loaded)).Stringer("point", point).Msg("dispatching")

			callID := uuid.NewString()
			d := rt.dispatcher
			out := cmd.OutOrStdout()

			switch point {
			case hooks.ToolExecuteBefore:
				input := hooks.ToolBeforeInput{Tool: f.tool, SessionID: f.session, CallID: callID, Args: []byte(f.args)}
				if len(input.Args) == 0 {
					input.Args = []byte("{}")
				}
				res, err := d.ToolExecuteBefore(ctx, input)
				if err != nil {
					return err
				}
				return writeJSON(out, res)

			case hooks.ToolExecuteAfter:
				res, err := d.ToolExecuteAfter(ctx, hooks.ToolAfterInput{
					Tool:      f.tool,
					SessionID: f.session,
					CallID:    callID,
					Success:   !f.failed,
					Duration:  f.duration,
					Output:    f.output,
				})
				if err != nil {
					return err
				}
				return writeJSON(out, res)

			case hooks.ChatMessage:
				res, err := d.ChatMessage(ctx, hooks.ChatInput{
					SessionID: f.session,
					Role:      f.role,
					MessageID: callID,
					Agent:     f.agent,
					Model:     f.model,
				}, f.content)
				if err != nil {
					return err
				}
				return writeJSON(out, res)

			case hooks.PermissionAsk:
				res, err := d.PermissionAsk(ctx, hooks.PermissionInput{
					SessionID:  f.session,
					Permission: f.permission,
					Resource:   f.resource,
					Reason:     f.reason,
				})
				if err != nil {
					return err
				}
				return writeJSON(out, res)

			case hooks.SessionStart:
				cwd, _ := os.Getwd()
				res, err := d.SessionStart(ctx, hooks.SessionStartInput{
					SessionID: f.session,
					Cwd:       cwd,
					Model:     f.model,
					Agent:     f.agent,
				})
				if err != nil {
					return err
				}
				return writeJSON(out, res)

			default:
				res, err := d.SessionEnd(ctx, hooks.SessionEndInput{
					SessionID: f.session,
					Duration:  f.duration,
				})
				if err != nil {
					return err
				}
				return writeJSON(out, res)
			}
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.session, "session", "cli", "Session id")
	flags.StringVar(&f.tool, "tool", "", "Tool name (tool points)")
	flags.StringVar(&f.args, "args", "", "Tool arguments as JSON (tool.execute.before)")
	flags.StringVar(&f.output, "output", "", "Tool output (tool.execute.after)")
	flags.BoolVar(&f.failed, "failed", false, "Mark the tool call as failed (tool.execute.after)")
	flags.DurationVar(&f.duration, "duration", 0, "Tool call or session duration")
	flags.StringVar(&f.role, "role", "user", "Message role (chat.message)")
	flags.StringVar(&f.content, "content", "", "Message content (chat.message)")
	flags.StringVar(&f.permission, "permission", "", "Permission kind (permission.ask)")
	flags.StringVar(&f.resource, "resource", "", "Resource (permission.ask)")
	flags.StringVar(&f.reason, "reason", "", "Why the permission is needed (permission.ask)")
	flags.StringVar(&f.model, "model", "", "Model name")
	flags.StringVar(&f.agent, "agent", "", "Agent name")
	return cmd
}
