// Package backend turns normalized strategy source into callable artifacts.
//
// Two implementations of CompilerBackend are provided. FullBackend accepts a
// strict HCL strategy block and reports every diagnostic it finds.
// FastBackend accepts a single lambda expression and stops at the first
// error. Neither keeps state between calls, so one instance of each serves
// all concurrent compiles.
package backend
