// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session drives a streaming chat turn from send to persisted reply.
//
// The state machine lives in Reduce, a pure function from (State, Input) to
// the next State plus a list of Effects. Controller feeds it user actions,
// bus events and timer expiries, then carries out the effects.
//
// # Phases
//
//	idle -> awaiting-start -> streaming -> finalizing -> idle
//
// Events are matched to the live session by subscription sequence, request
// id and stream id, so output from an earlier request can never land in a
// newer placeholder. A session is persisted at most once.
//
// # Usage
//
//	ctrl := session.New(store, gen, bus, transcript, session.Config{
//		Model:  "llama3.2",
//		Logger: logging.L(),
//	})
//	defer ctrl.Shutdown(ctx)
//
//	if err := ctrl.Send(ctx, "hi", nil); err != nil {
//		return err
//	}
//	ctrl.WaitIdle(ctx)
//
// Transcript listeners run while the controller holds its lock and must not
// call back into the Controller.
package session
