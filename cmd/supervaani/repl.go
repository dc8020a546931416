package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/supervaani/chat"
	"github.com/hrygo/supervaani/store"
)

const helpText = `Type a message and press enter to send it.
  /new          start a new conversation
  /list         show loaded conversations
  /more         load more conversations
  /open <n|id>  open a conversation by list number or id
  /quit         leave`

type repl struct {
	client *chat.Client
	out    io.Writer
}

func newREPL(client *chat.Client, out io.Writer) *repl {
	return &repl{client: client, out: out}
}

// run reads lines from in until /quit, EOF or ctx is done.
func (r *repl) run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	fmt.Fprintln(r.out, helpText)
	for {
		r.prompt()
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.out)
			return nil
		case err := <-readErr:
			return errors.Wrap(err, "failed to read input")
		case line := <-lines:
			if quit := r.handle(ctx, line); quit {
				return nil
			}
		}
	}
}

func (r *repl) prompt() {
	if cur := r.client.Store().Current(); cur != nil && cur.Title != "" {
		fmt.Fprintf(r.out, "[%s] > ", cur.Title)
		return
	}
	fmt.Fprint(r.out, "> ")
}

// handle executes one line and reports whether the session should end.
func (r *repl) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "":
		return false
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(r.out, helpText)
	case "/new":
		r.client.NewConversation()
		fmt.Fprintln(r.out, "Started a new conversation.")
	case "/list":
		r.printList()
	case "/more":
		loaded, err := r.client.LoadNextPage(ctx)
		switch {
		case err != nil:
			r.printError(err)
		case !loaded:
			fmt.Fprintln(r.out, "No more conversations.")
		default:
			r.printList()
		}
	case "/open":
		r.open(ctx, strings.TrimSpace(arg))
	default:
		if strings.HasPrefix(cmd, "/") {
			fmt.Fprintf(r.out, "Unknown command %s. Type /help.\n", cmd)
			return false
		}
		r.send(ctx, line)
	}
	return false
}

func (r *repl) send(ctx context.Context, text string) {
	r.client.SetInput(text)
	conv, err := r.client.SendInput(ctx)
	if err != nil {
		r.printError(err)
		return
	}
	if conv == nil || len(conv.Messages) == 0 {
		return
	}
	if last := conv.Messages[len(conv.Messages)-1]; last.Role == store.RoleAssistant {
		fmt.Fprintf(r.out, "SuperVaani: %s\n", last.Content)
	}
}

func (r *repl) open(ctx context.Context, arg string) {
	if arg == "" {
		fmt.Fprintln(r.out, "Usage: /open <n|id>")
		return
	}
	id := arg
	if n, err := strconv.Atoi(arg); err == nil {
		list := r.client.Store().List()
		if n < 1 || n > len(list) {
			fmt.Fprintf(r.out, "No conversation %d.\n", n)
			return
		}
		id = list[n-1].ID
	}

	conv, err := r.client.OpenConversation(ctx, id)
	if err != nil {
		r.printError(err)
		return
	}
	fmt.Fprintf(r.out, "-- %s --\n", conv.Title)
	for _, m := range conv.Messages {
		r.printMessage(m)
	}
}

func (r *repl) printList() {
	list := r.client.Store().List()
	if len(list) == 0 {
		fmt.Fprintln(r.out, "No conversations yet.")
		return
	}
	currentID := r.client.Store().CurrentID()
	for i, c := range list {
		marker := " "
		if c.ID == currentID {
			marker = "*"
		}
		fmt.Fprintf(r.out, "%s %2d. %s\n", marker, i+1, c.Title)
	}
	if r.client.Pager().HasMore() {
		fmt.Fprintln(r.out, "More available, type /more.")
	}
}

func (r *repl) printMessage(m *store.ChatMessage) {
	who := "You"
	if m.Role == store.RoleAssistant {
		who = "SuperVaani"
	}
	suffix := ""
	if m.Status == store.MessageStatusFailed {
		suffix = " (not sent)"
	}
	fmt.Fprintf(r.out, "%s: %s%s\n", who, m.Content, suffix)
}

func (r *repl) printError(err error) {
	fmt.Fprintf(r.out, "error: %v\n", err)
}
