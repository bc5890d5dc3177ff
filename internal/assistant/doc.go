// Package assistant routes chat messages to calendar operations.
//
// A message is sent to the language model with an analysis prompt. The
// analysis is matched against fixed intent markers (query, create,
// mark-important, in that order) and the winning branch calls the calendar
// gateway. Event details for creation are read from "label: value" lines in
// the analysis. All user-facing text, markers, labels and prompts come from
// a Lexicon, with English and Chinese built in.
package assistant
