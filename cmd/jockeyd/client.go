// Copyright 2025 The LAMA Jockey Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/lama-robotics/jockey/jockeyclient"
	"github.com/lama-robotics/jockey/localize"
)

func (a *app) dial() (*jockeyclient.Client, error) {
	return jockeyclient.New(a.cfg.Listen, grpc.WithTransportCredentials(insecure.NewCredentials()))
}

func newSubmitCommand(a *app) *cobra.Command {
	var goalID string
	cmd := &cobra.Command{
		Use:   "submit ACTION DESCRIPTOR",
		Short: "Submit a goal and print its feedback and result",
		Long: `Submits a task-starting goal, for example:

  jockeyd submit LOCALIZE_IN_VERTEX vertex-12

Every feedback record and the final result are printed as JSON lines. The goal
is preempted if a newer goal is submitted or the command is interrupted.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := localize.ParseActionKind(args[0])
			if err != nil {
				return err
			}
			client, err := a.dial()
			if err != nil {
				return err
			}
			defer client.Close()

			goal := localize.Goal{ID: localize.GoalID(goalID), Action: action, Descriptor: []byte(args[1])}
			out := cmd.OutOrStdout()
			for event, err := range client.Submit(cmd.Context(), goal) {
				if err != nil {
					return err
				}
				if err := printJSON(out, event); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&goalID, "goal-id", "", "goal ID, generated by the server if empty")
	return cmd
}

func newControlCommand(a *app, use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.dial()
			if err != nil {
				return err
			}
			defer client.Close()

			control := client.Interrupt
			if use == "continue" {
				control = client.Continue
			}
			id, err := control(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"goalId": id})
		},
	}
}

func newCancelCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Preempt the active goal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.dial()
			if err != nil {
				return err
			}
			defer client.Close()
			return client.Cancel(cmd.Context())
		},
	}
}

func newStateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print the task state and the active goal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.dial()
			if err != nil {
				return err
			}
			defer client.Close()

			state, goal, err := client.State(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), struct {
				State localize.TaskState `json:"state"`
				Goal  *localize.Goal     `json:"goal,omitempty"`
			}{State: state, Goal: goal})
		},
	}
}

func printJSON(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
