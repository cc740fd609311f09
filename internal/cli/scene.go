package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tether/internal/physics/chipmunk"
	"github.com/roach88/tether/internal/scene"
	"github.com/roach88/tether/internal/world"
)

// SceneSummary describes a scene that loaded and built.
type SceneSummary struct {
	Name        string `json:"name"`
	Bodies      int    `json:"bodies"`
	Cars        int    `json:"cars"`
	WorldBodies int    `json:"world_bodies"`
	Constraints int    `json:"constraints"`
}

func (s SceneSummary) String() string {
	return fmt.Sprintf("Scene %q is valid: %d bodies, %d cars (%d bodies in the world)",
		s.Name, s.Bodies, s.Cars, s.WorldBodies)
}

// SceneProblem is one validation failure.
type SceneProblem struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// NewSceneCommand creates the scene command group.
func NewSceneCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scene",
		Short: "Inspect scene files",
	}
	cmd.AddCommand(newSceneValidateCommand(rootOpts))
	cmd.AddCommand(newSceneShowCommand(rootOpts))
	return cmd
}

func newSceneValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <scene-file>",
		Short: "Check a scene file without starting a server",
		Long: `Parse a .yaml, .yml or .cue scene, check every body and car, and
build it into a throwaway world.

CUE scenes are checked against the built-in schema, so errors carry
the line and column of the offending value.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSceneValidate(rootOpts, args[0], cmd)
		},
	}
}

func newSceneShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show [scene-file]",
		Short: "Print a scene as JSON (the built-in scene by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			sc, err := loadScene(path)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load scene", err)
			}
			formatter := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			formatter.Format = "json"
			return formatter.Success(sc)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

func runSceneValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if _, err := os.Stat(path); err != nil {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("scene file not found: %s", path), nil)
		return WrapExitError(ExitCommandError, "scene file not found", err)
	}

	formatter.VerboseLog("Loading %s", path)
	sc, err := scene.Load(path)
	if err != nil {
		problems := sceneProblems(err)
		code := ErrCodeSceneInvalid
		var cueErr *scene.CUEError
		if errors.As(err, &cueErr) {
			code = ErrCodeSceneParse
		}
		_ = formatter.Error(code, err.Error(), problems)
		return WrapExitError(ExitFailure, "invalid scene", err)
	}

	w := world.New(chipmunk.New(chipmunk.WithGravity(sc.Gravity)))
	if err := sc.Build(w); err != nil {
		_ = formatter.Error(ErrCodeSceneInvalid, err.Error(), nil)
		return WrapExitError(ExitFailure, "invalid scene", err)
	}

	bodies, constraints := w.Counts()
	return formatter.Success(SceneSummary{
		Name:        sc.Name,
		Bodies:      len(sc.Bodies),
		Cars:        len(sc.Cars),
		WorldBodies: bodies,
		Constraints: constraints,
	})
}

// sceneProblems flattens a load error into its individual failures.
func sceneProblems(err error) []SceneProblem {
	var cueErr *scene.CUEError
	if errors.As(err, &cueErr) {
		p := SceneProblem{Message: cueErr.Message}
		if cueErr.Pos.IsValid() {
			p.Line = cueErr.Pos.Line()
			p.Column = cueErr.Pos.Column()
		}
		return []SceneProblem{p}
	}

	var problems []SceneProblem
	collectProblems(err, &problems)
	if len(problems) == 0 {
		problems = append(problems, SceneProblem{Message: err.Error()})
	}
	return problems
}

func collectProblems(err error, out *[]SceneProblem) {
	switch e := err.(type) {
	case *scene.ValidationError:
		*out = append(*out, SceneProblem{Field: e.Field, Message: e.Message})
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			collectProblems(inner, out)
		}
	case interface{ Unwrap() error }:
		if inner := e.Unwrap(); inner != nil {
			collectProblems(inner, out)
		}
	}
}
