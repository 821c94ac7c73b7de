// Package ui renders run progress in the terminal.
//
// [NewDisplay] chooses between two implementations of the pipeline's display:
//   - [TerminalDisplay] runs a bubbletea program with a bubbles/progress bar. Reporter messages are printed
//     above the bar with lipgloss colors. The program reads no input and leaves signals to the caller.
//   - [LineDisplay] is used when output is redirected. It writes a plain progress line each time the
//     completed share crosses a percentage bucket.
package ui
