package ui

import (
	"fmt"
	"strconv"
	"strings"
)

type commandKind int

const (
	cmdSubmit commandKind = iota
	cmdNew
	cmdChats
	cmdOpen
	cmdDelete
	cmdRename
	cmdRefresh
	cmdLogout
	cmdQuit
)

type command struct {
	kind  commandKind
	text  string
	index int
}

// parseCommand turns an input line into a command. Anything that does not
// start with a slash is a message.
func parseCommand(line string) (command, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return command{kind: cmdSubmit, text: line}, nil
	}

	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "/new":
		return command{kind: cmdNew}, nil
	case "/chats":
		return command{kind: cmdChats}, nil
	case "/open":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			return command{}, fmt.Errorf("usage: /open N (see /chats)")
		}
		return command{kind: cmdOpen, index: n}, nil
	case "/delete":
		return command{kind: cmdDelete}, nil
	case "/rename":
		if arg == "" {
			return command{}, fmt.Errorf("usage: /rename TITLE")
		}
		return command{kind: cmdRename, text: arg}, nil
	case "/refresh":
		return command{kind: cmdRefresh}, nil
	case "/logout":
		return command{kind: cmdLogout}, nil
	case "/quit", "/exit":
		return command{kind: cmdQuit}, nil
	}
	return command{}, fmt.Errorf("unknown command %s", name)
}

const helpText = "/new  /chats  /open N  /rename TITLE  /delete  /refresh  /logout  /quit"
