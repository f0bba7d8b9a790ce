package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"cabotin-go/internal/chat"
)

// lineSource splits a raw console line into the speaker and the message.
type lineSource func(line string) (nick, msg string, ok bool)

// fixedNick attributes every line to nick.
func fixedNick(nick string) lineSource {
	return func(line string) (string, string, bool) {
		return nick, line, true
	}
}

// prefixedNick reads "nick: message" lines.
func prefixedNick(line string) (string, string, bool) {
	nick, msg, found := strings.Cut(line, ":")
	nick = strings.TrimSpace(nick)
	if !found || nick == "" || strings.ContainsAny(nick, " \t") {
		return "", "", false
	}
	return nick, strings.TrimSpace(msg), true
}

// chatLoop feeds lines from in to the chat handler until in is exhausted or
// ctx ends. Replies go to out.
func chatLoop(ctx context.Context, h *chat.Handler, in io.Reader, out io.Writer, source lineSource) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}

			nick, msg, ok := source(line)
			if !ok {
				fmt.Fprintln(out, "expected `nick: message`")
				continue
			}
			if reply, ok := h.HandleLine(ctx, nick, msg); ok {
				fmt.Fprintln(out, reply)
			}
		}
	}
}
