// Package events defines the typed events the orchestrator emits to
// observers.
//
// Event kinds are grouped by namespace:
//
//   - turn_state.*
//   - user_input.*
//   - command.*
//   - assistant_response.*
//   - assistant_speech.*
//   - interruption.*
//   - session.*
//
// turn_state events
//
//   - TurnStateChanged (turn_state.changed): the orchestrator moved between
//     Idle, Listening, Processing, Executing and Speaking.
//   - TurnStarted (turn_state.started): a prompt was handed to the assistant.
//   - TurnCompleted (turn_state.completed): the turn ended, with whether it
//     was interrupted.
//
// user_input events
//
//   - UserSpeechStarted (user_input.speech_started): voice activity began.
//   - UserUtteranceCaptured (user_input.utterance_captured): an utterance was
//     segmented; carries its duration.
//   - UserTranscriptFinal (user_input.transcript_final): the transcript of the
//     utterance.
//
// command events
//
//   - CommandRecognized (command.recognized): the transcript matched the
//     voice command vocabulary instead of being sent to the assistant.
//
// assistant_response events
//
//   - AssistantMessage (assistant_response.message): one normalized line of
//     assistant output, in arrival order.
//
// assistant_speech events
//
//   - SpeechFragmentQueued (assistant_speech.fragment_queued): a fragment was
//     queued for playback.
//   - SpeechFragmentSpoken (assistant_speech.fragment_spoken): a fragment
//     finished playing or was cut short.
//
// interruption events
//
//   - InterruptionDetected (interruption.detected): playback was interrupted
//     by barge-in or an explicit request.
//
// session events
//
//   - SessionReset (session.reset): the assistant session was replaced.
package events
