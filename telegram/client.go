// Copyright (c) 2025 BVK Chaitanya

// Package telegram implements a telegram bot that forwards batch
// notifications to the configured users and answers their commands.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bvk/unitbot/ctxutil"
	"github.com/bvk/unitbot/gobs"
	"github.com/bvk/unitbot/kvutil"
	"github.com/bvk/unitbot/syncmap"
	"github.com/bvkgo/kv"
	"github.com/visvasity/cli"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const Keyspace = "/telegram/"

// maxMessageLen is kept below the telegram limit of 4096 characters.
const maxMessageLen = 4000

type CmdFunc = cli.CmdFunc

type Command struct {
	Purpose string
	Handler CmdFunc
}

type Client struct {
	cg ctxutil.CloseGroup

	db kv.Database

	bot  *bot.Bot
	self *models.User

	secrets *Secrets

	// mu protects the chat ids in the state.
	mu    sync.Mutex
	state *gobs.TelegramState

	commandMap syncmap.Map[string, *Command]
}

var start = time.Now()

func New(ctx context.Context, db kv.Database, secrets *Secrets) (*Client, error) {
	if err := secrets.Check(); err != nil {
		return nil, err
	}

	c := &Client{
		db:      db,
		secrets: secrets.Clone(),
	}
	b, err := bot.New(secrets.BotToken, bot.WithDefaultHandler(c.handler))
	if err != nil {
		return nil, fmt.Errorf("could not create telegram bot: %w", err)
	}
	c.bot = b

	self, err := c.bot.GetMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not get telegram bot identity: %w", err)
	}
	c.self = self

	state, err := kvutil.GetDB[gobs.TelegramState](ctx, db, stateKey(self.Username))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		state = &gobs.TelegramState{UserChatIDMap: make(map[string]int64)}
	}
	c.state = state

	c.commandMap.Store("uptime", &Command{Purpose: "Prints unitbot uptime", Handler: uptime})
	c.commandMap.Store("help", &Command{Purpose: "Lists the bot commands", Handler: c.help})
	if err := c.setCommands(ctx); err != nil {
		return nil, err
	}

	c.cg.Go(func(ctx context.Context) {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("CAUGHT PANIC", "panic", r)
				slog.Error(string(debug.Stack()))
				panic(r)
			}
		}()
		c.bot.Start(ctx)
	})
	slog.Info("telegram bot is ready", "bot", self.Username, "owner", c.secrets.OwnerID)
	return c, nil
}

func (c *Client) Close() error {
	c.cg.Close()
	return nil
}

// AddCommand registers a bot command. Output written by the handler to
// cli.Stdout is sent back as the reply.
func (c *Client) AddCommand(ctx context.Context, name, purpose string, handler CmdFunc) error {
	if len(name) == 0 || len(purpose) == 0 || handler == nil {
		return os.ErrInvalid
	}
	if _, loaded := c.commandMap.LoadOrStore(name, &Command{Purpose: purpose, Handler: handler}); loaded {
		return fmt.Errorf("bot command %q is already registered: %w", name, os.ErrExist)
	}
	return c.setCommands(ctx)
}

func (c *Client) commandNames() []string {
	var names []string
	for name := range c.commandMap.Range {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (c *Client) setCommands(ctx context.Context) error {
	p := new(bot.SetMyCommandsParams)
	for _, name := range c.commandNames() {
		cmd, _ := c.commandMap.Load(name)
		p.Commands = append(p.Commands, models.BotCommand{Command: name, Description: cmd.Purpose})
	}
	if ok, err := c.bot.SetMyCommands(ctx, p); err != nil {
		return fmt.Errorf("could not set bot commands: %w", err)
	} else if !ok {
		return fmt.Errorf("could not set bot commands")
	}
	return nil
}

func stateKey(botName string) string {
	return path.Join(Keyspace, botName, "state")
}

// SendMessage sends an alert to every configured receiver that has talked to
// the bot at least once. Delivery failures are logged and ignored.
func (c *Client) SendMessage(ctx context.Context, at time.Time, text string) error {
	msg := at.Format("2006-01-02 15:04:05 MST") + " " + text
	slog.Info("sending notification", "at", at, "message", text)

	for _, receiver := range c.secrets.Receivers() {
		c.mu.Lock()
		cid, ok := c.state.UserChatIDMap[receiver]
		c.mu.Unlock()
		if !ok {
			slog.Warn("could not notify receiver without chat id", "receiver", receiver)
			continue
		}
		for _, chunk := range splitMessage(msg, maxMessageLen) {
			if _, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{ChatID: cid, Text: chunk}); err != nil {
				slog.Error("could not notify receiver (ignored)", "receiver", receiver, "err", err)
				break
			}
		}
	}
	return nil
}

func (c *Client) handler(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	sender := update.Message.From.Username
	if !c.secrets.IsAllowed(sender) {
		slog.Warn("received message from unknown user (ignored)", "sender", sender, "message", update.Message.Text)
		return
	}
	if err := c.updateChatID(ctx, sender, update.Message.Chat.ID); err != nil {
		slog.Warn("could not save chat id (ignored)", "user", sender, "err", err)
	}

	name, args, ok := parseCommand(update.Message.Text, c.self.Username)
	if !ok {
		return
	}
	reply, err := c.run(ctx, name, args)
	if err != nil {
		slog.Error("could not handle bot command", "cmd", name, "user", sender, "err", err)
		reply = err.Error()
	}
	if len(reply) == 0 {
		reply = "OK"
	}

	disabled := true
	for i, chunk := range splitMessage(reply, maxMessageLen) {
		p := &bot.SendMessageParams{
			ChatID:             update.Message.Chat.ID,
			Text:               chunk,
			LinkPreviewOptions: &models.LinkPreviewOptions{IsDisabled: &disabled},
		}
		if i == 0 {
			p.ReplyParameters = &models.ReplyParameters{MessageID: update.Message.ID}
		}
		if _, err := b.SendMessage(ctx, p); err != nil {
			slog.Error("could not reply to bot command (ignored)", "cmd", name, "user", sender, "err", err)
			return
		}
	}
}

func (c *Client) run(ctx context.Context, name string, args []string) (string, error) {
	cmd, ok := c.commandMap.Load(name)
	if !ok {
		return "", fmt.Errorf("unknown command /%s; try /help", name)
	}
	var sb strings.Builder
	if err := cmd.Handler(cli.WithStdout(ctx, &sb), args); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (c *Client) updateChatID(ctx context.Context, user string, chatID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id, ok := c.state.UserChatIDMap[user]; ok && id == chatID {
		return nil
	}
	c.state.UserChatIDMap[user] = chatID
	slog.Info("updating chat id of an authorized user", "user", user, "chat-id", chatID)
	return kvutil.SetDB(ctx, c.db, stateKey(c.self.Username), c.state)
}

func (c *Client) help(ctx context.Context, _ []string) error {
	stdout := cli.Stdout(ctx)
	for _, name := range c.commandNames() {
		if cmd, ok := c.commandMap.Load(name); ok {
			fmt.Fprintf(stdout, "/%s - %s\n", name, cmd.Purpose)
		}
	}
	return nil
}

func uptime(ctx context.Context, _ []string) error {
	const day = 24 * time.Hour
	d := time.Since(start).Truncate(time.Second)
	if d < day {
		fmt.Fprintf(cli.Stdout(ctx), "%v", d)
		return nil
	}
	fmt.Fprintf(cli.Stdout(ctx), "%dd%v", d/day, d%day)
	return nil
}

// parseCommand parses a "/name@bot arg1 arg2" message. Commands addressed to
// other bots are ignored.
func parseCommand(text, botName string) (string, []string, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil, false
	}
	name, target, found := strings.Cut(fields[0][1:], "@")
	if found && !strings.EqualFold(target, botName) {
		return "", nil, false
	}
	if len(name) == 0 {
		return "", nil, false
	}
	return name, fields[1:], true
}

// splitMessage splits text into chunks of at most n bytes, preferring line
// boundaries.
func splitMessage(text string, n int) []string {
	var chunks []string
	for len(text) > n {
		cut := strings.LastIndexByte(text[:n], '\n')
		if cut <= 0 {
			cut = n
		}
		chunks = append(chunks, text[:cut])
		text = strings.TrimPrefix(text[cut:], "\n")
	}
	if len(text) > 0 {
		chunks = append(chunks, text)
	}
	return chunks
}
