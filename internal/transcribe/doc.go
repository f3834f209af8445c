// Package transcribe turns downloaded episode audio into text with the
// whisper command line tool.
//
// The tool writes a JSON document next to a scratch directory; the service
// reads the top-level text, falling back to the joined segment texts. An
// empty transcript is a failure. Tests swap the command runner so no binary
// is needed.
package transcribe
