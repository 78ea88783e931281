// Package main runs the widget client headless: it connects to a widget
// server, refreshes the Kitchen room every five seconds and keeps an
// in-memory page up to date. With -out the page is written to a file after
// every update.
//
// Usage:
//
//	./widget -origin https://192.168.1.20:8080
//	./widget -origin http://localhost:8080 -page index.html -out widget.html
package main
