package telegram

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/briefwire/briefwire/internal/chat"
	"github.com/briefwire/briefwire/internal/models"
	"github.com/briefwire/briefwire/internal/retry"
)

const listLimit = 5

// Provider is the news surface the bot serves from, implemented by the
// aggregator.
type Provider interface {
	Articles(category string, order models.SortOrder) []models.Article
	Topics() []models.TopicGroup
	Chat(query string) chat.Response
	Refresh(ctx context.Context) error
}

type Bot struct {
	api    *tgbotapi.BotAPI
	chatID int64
	logger zerolog.Logger
}

// NewBot connects to the Telegram API. chatID is the chat that receives
// digest pushes; zero disables them.
func NewBot(token string, chatID int64, logger zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &Bot{
		api:    api,
		chatID: chatID,
		logger: logger,
	}, nil
}

// Start long-polls for updates until ctx ends.
func (b *Bot) Start(ctx context.Context, provider Provider) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	b.logger.Info().Str("bot", b.api.Self.UserName).Msg("telegram bot listening")

	go func() {
		for {
			select {
			case <-ctx.Done():
				b.api.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				b.handleUpdate(ctx, provider, update)
			}
		}
	}()
}

func (b *Bot) handleUpdate(ctx context.Context, provider Provider, update tgbotapi.Update) {
	if update.Message == nil {
		return
	}

	chatID := update.Message.Chat.ID
	text := strings.TrimSpace(update.Message.Text)

	switch {
	case strings.HasPrefix(text, "/start"):
		b.handleStart(chatID)
	case strings.HasPrefix(text, "/help"):
		b.handleHelp(chatID)
	case strings.HasPrefix(text, "/latest"):
		b.handleLatest(provider, chatID, text)
	case strings.HasPrefix(text, "/topics"):
		b.handleTopics(provider, chatID)
	case strings.HasPrefix(text, "/find"):
		b.handleFind(provider, chatID, text)
	case strings.HasPrefix(text, "/refresh"):
		b.handleRefresh(ctx, provider, chatID)
	default:
		b.sendMessage(chatID, "Unknown command. Use /help for available commands.")
	}
}

func (b *Bot) handleStart(chatID int64) {
	b.sendMessage(chatID, `Welcome to Briefwire! 📰

I collect headlines from news APIs and RSS feeds, summarize them, and group them by topic.

Commands:
/latest [category] - Newest headlines, optionally filtered
/topics - Topic overview of the current window
/find <keywords> - Search the fetched news
/refresh - Fetch fresh news now
/help - Show this help message`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.sendMessage(chatID, `Briefwire Help 📖

Commands:
/latest - Five newest headlines
/latest business - Newest headlines in one category
/topics - How the current news splits into topics
/find climate summit - Keyword search over titles, summaries and sources
/refresh - Trigger a fetch right now

Categories: general, technology, sports, business, entertainment, tech, politics`)
}

func (b *Bot) handleLatest(provider Provider, chatID int64, text string) {
	category := commandArg(text, "/latest")

	articles := provider.Articles(category, models.SortNewest)
	if len(articles) == 0 {
		b.sendMessage(chatID, "No news available right now. Try /refresh first.")
		return
	}

	heading := "📰 <b>Latest headlines</b>"
	if category != "" {
		heading = fmt.Sprintf("📰 <b>Latest %s headlines</b>", html.EscapeString(category))
	}
	b.sendMessage(chatID, FormatArticles(heading, articles, listLimit))
}

func (b *Bot) handleTopics(provider Provider, chatID int64) {
	groups := provider.Topics()
	if len(groups) == 0 {
		b.sendMessage(chatID, "No topics yet. Try /refresh first.")
		return
	}

	var sb strings.Builder
	sb.WriteString("🗂 <b>Topics</b>\n")
	for _, group := range groups {
		fmt.Fprintf(&sb, "\n• %s (%d)", html.EscapeString(group.Topic), len(group.Articles))
	}
	b.sendMessage(chatID, sb.String())
}

func (b *Bot) handleFind(provider Provider, chatID int64, text string) {
	query := commandArg(text, "/find")
	if query == "" {
		b.sendMessage(chatID, "Tell me what to look for, e.g. /find climate summit")
		return
	}

	result := provider.Chat(query)
	if len(result.Articles) == 0 {
		b.sendMessage(chatID, html.EscapeString(result.Reply))
		return
	}
	b.sendMessage(chatID, FormatArticles("🔎 <b>"+html.EscapeString(result.Reply)+"</b>", result.Articles, listLimit))
}

func (b *Bot) handleRefresh(ctx context.Context, provider Provider, chatID int64) {
	b.sendMessage(chatID, "Fetching fresh news...")
	if err := provider.Refresh(ctx); err != nil {
		b.sendMessage(chatID, "Refresh failed: "+html.EscapeString(err.Error()))
		return
	}
	b.sendMessage(chatID, "Done. Use /latest for the newest headlines.")
}

// SendDigest pushes headlines to the configured digest chat. The caller
// filters out articles that were pushed before.
func (b *Bot) SendDigest(ctx context.Context, articles []models.Article) error {
	if b.chatID == 0 || len(articles) == 0 {
		return nil
	}

	text := FormatArticles("📰 <b>Fresh headlines</b>", articles, listLimit)
	return retry.WithRetry(ctx, retry.Config{MaxAttempts: 3, Delay: 2 * time.Second}, func() error {
		return b.send(b.chatID, text)
	})
}

// FormatArticles renders a numbered HTML list capped at limit entries.
func FormatArticles(heading string, articles []models.Article, limit int) string {
	var sb strings.Builder
	sb.WriteString(heading + "\n")

	shown := articles
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}

	for i, article := range shown {
		sb.WriteString("\n")
		title := html.EscapeString(article.Title)
		if article.URL != "" {
			fmt.Fprintf(&sb, "%d. <a href=\"%s\">%s</a>\n", i+1, html.EscapeString(article.URL), title)
		} else {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, title)
		}

		detail := html.EscapeString(article.Source.DisplayName())
		if article.Category != "" {
			if detail != "" {
				detail += " · "
			}
			detail += html.EscapeString(article.Category)
		}
		if detail != "" {
			sb.WriteString("   " + detail + "\n")
		}
	}

	if rest := len(articles) - len(shown); rest > 0 {
		fmt.Fprintf(&sb, "\n…and %d more.", rest)
	}
	return sb.String()
}

func commandArg(text, command string) string {
	return strings.TrimSpace(strings.TrimPrefix(text, command))
}

func (b *Bot) sendMessage(chatID int64, text string) {
	if err := b.send(chatID, text); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("failed to send telegram message")
	}
}

func (b *Bot) send(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "HTML"
	msg.DisableWebPagePreview = true

	_, err := b.api.Send(msg)
	return err
}
