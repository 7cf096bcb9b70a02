package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"
)

var ErrNoItem = errors.New("feed item out of range")

type FeedItem struct {
	Title           string
	Description     string
	Content         string
	Link            string
	PublicationDate time.Time
}

// Text returns the item as plain text: its title, a blank line and the body
// with markup removed.
func (it *FeedItem) Text() (string, error) {
	body, err := HTMLToText(it.Content)
	if err != nil {
		return "", err
	}
	if it.Title == "" {
		return body, nil
	}
	return it.Title + "\n\n" + body, nil
}

// FeedReader fetches and parses RSS and Atom feeds.
type FeedReader struct {
	parser *gofeed.Parser
}

func NewFeedReader() *FeedReader {
	return &FeedReader{
		parser: gofeed.NewParser(),
	}
}

func (fr *FeedReader) ParseURL(ctx context.Context, url string) ([]*FeedItem, error) {
	feed, err := fr.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed from URL %s: %w", url, err)
	}

	return extractItems(feed), nil
}

func (fr *FeedReader) ParseString(feedContent string) ([]*FeedItem, error) {
	feed, err := fr.parser.ParseString(feedContent)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed from string: %w", err)
	}

	return extractItems(feed), nil
}

// Item fetches the feed at url and returns the text of the item at index,
// counted from the newest entry as the feed lists it.
func (fr *FeedReader) Item(ctx context.Context, url string, index int) (string, error) {
	items, err := fr.ParseURL(ctx, url)
	if err != nil {
		return "", err
	}
	if index < 0 || index >= len(items) {
		return "", fmt.Errorf("%w: %d of %d", ErrNoItem, index, len(items))
	}
	return items[index].Text()
}

func extractItems(feed *gofeed.Feed) []*FeedItem {
	items := make([]*FeedItem, 0, len(feed.Items))

	for _, item := range feed.Items {
		feedItem := &FeedItem{
			Title:       item.Title,
			Description: item.Description,
			Content:     item.Content,
			Link:        item.Link,
		}

		switch {
		case item.PublishedParsed != nil:
			feedItem.PublicationDate = *item.PublishedParsed
		case item.UpdatedParsed != nil:
			feedItem.PublicationDate = *item.UpdatedParsed
		}

		if feedItem.Content == "" {
			feedItem.Content = feedItem.Description
		}

		items = append(items, feedItem)
	}

	return items
}
