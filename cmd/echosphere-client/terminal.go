package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"echosphere/internal/client"
	"echosphere/internal/event"
)

var _ client.UI = (*terminalUI)(nil)

// terminalUI is a plain line-based terminal implementation of the client UI
// collaborator. Incoming messages print as they arrive and every line typed
// by the user is published through MessageSubmit.
type terminalUI struct {
	submit *event.Emitter[string]
	reader *bufio.Reader

	systemStyle *color.Color
	senderStyle *color.Color
	alertStyle  *color.Color
}

func newTerminalUI() *terminalUI {
	return &terminalUI{
		submit:      event.NewEmitter[string](),
		reader:      bufio.NewReader(os.Stdin),
		systemStyle: color.New(color.FgYellow, color.Italic),
		senderStyle: color.New(color.FgCyan, color.Bold),
		alertStyle:  color.New(color.FgRed, color.Bold),
	}
}

func (ui *terminalUI) Alert(text string) {
	ui.alertStyle.Fprintln(os.Stderr, text)
}

func (ui *terminalUI) AskFor(prompt, defaultValue string) (string, error) {
	if defaultValue != "" {
		fmt.Printf("%s [%s]: ", prompt, defaultValue)
	} else {
		fmt.Printf("%s: ", prompt)
	}
	line, err := ui.reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("the prompt was cancelled: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return defaultValue, nil
	}
	return line, nil
}

func (ui *terminalUI) DisplayText(text string) {
	fmt.Println(text)
}

// DisplaySystem renders a server-originated message.
func (ui *terminalUI) DisplaySystem(text string) {
	ui.systemStyle.Println(text)
}

// DisplayMessage renders a chat message from another user.
func (ui *terminalUI) DisplayMessage(username, text string) {
	fmt.Printf("%s %s\n", ui.senderStyle.Sprintf("%s:", username), text)
}

func (ui *terminalUI) Draw() {}

func (ui *terminalUI) Exit(err error) {
	if err != nil {
		ui.Alert(err.Error())
		os.Exit(1)
	}
	os.Exit(0)
}

func (ui *terminalUI) MessageSubmit() *event.Emitter[string] {
	return ui.submit
}

// Run reads lines from stdin and publishes them until EOF or an error.
func (ui *terminalUI) Run() error {
	for {
		line, err := ui.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}
		ui.submit.Emit(line)
	}
}
