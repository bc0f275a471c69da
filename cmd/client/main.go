package main

import (
	"bufio"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/gorilla/websocket"
)

var (
	senderColor = color.New(color.FgGreen, color.Bold)
	replyColor  = color.New(color.FgCyan)
	noticeColor = color.New(color.FgYellow)
	errorColor  = color.New(color.FgRed)
)

func main() {
	url := flag.String("url", "ws://localhost:8080/ws", "chat server WebSocket URL")
	origin := flag.String("origin", "http://localhost:8080", "Origin header sent during the handshake")
	flag.Parse()

	if err := run(*url, *origin); err != nil {
		errorColor.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(url, origin string) error {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	headers := http.Header{}
	headers.Set("Origin", origin)

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					errorColor.Printf("connection closed: %v\n", err)
				}
				return
			}
			printMessage(string(message))
		}
	}()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-done:
			return nil
		case <-stop:
			return closeGracefully(conn, done)
		case line, ok := <-lines:
			if !ok {
				return closeGracefully(conn, done)
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				return fmt.Errorf("failed to send message: %w", err)
			}
		}
	}
}

func closeGracefully(conn *websocket.Conn, done <-chan struct{}) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	select {
	case <-done:
	case <-time.After(time.Second):
	}
	return nil
}

func printMessage(message string) {
	switch {
	case strings.HasPrefix(message, "Reply from PrivatBank"):
		replyColor.Println(message)
	case strings.HasPrefix(message, "List of currencies"),
		strings.HasPrefix(message, "Should be in the following list"),
		strings.HasPrefix(message, "Second parameter should be"),
		strings.HasPrefix(message, "Number of days should not exceed"):
		noticeColor.Println(message)
	default:
		name, text, found := strings.Cut(message, ": ")
		if !found || strings.ContainsAny(name, "[{\"\n") {
			fmt.Println(message)
			return
		}
		senderColor.Print(name)
		fmt.Println(": " + text)
	}
}
