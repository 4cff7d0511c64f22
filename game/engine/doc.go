// Package engine holds the pure board rules: a 3x3 grid, two marks, and
// win/draw detection. It has no knowledge of players, sessions, or I/O.
package engine
