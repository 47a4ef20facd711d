package classify

import (
	"sort"
	"strings"

	"github.com/briefwire/briefwire/internal/models"
)

// DefaultCategory is assigned when neither the record nor its source name
// suggests anything better.
const DefaultCategory = "general"

type sourceRule struct {
	keywords []string
	category string
}

// Checked in order; the first rule with a fragment of the source name wins.
var sourceRules = []sourceRule{
	{[]string{"tech", "gadget", "digital"}, "technology"},
	{[]string{"sport", "athletic", "game"}, "sports"},
	{[]string{"business", "finance", "market"}, "business"},
	{[]string{"entertainment", "movie", "hollywood"}, "entertainment"},
}

// FromSourceName guesses a category from the publisher's name, returning ""
// when no rule matches.
func FromSourceName(name string) string {
	lower := strings.ToLower(name)
	if lower == "" {
		return ""
	}
	for _, rule := range sourceRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.category
			}
		}
	}
	return ""
}

type topic struct {
	label    string
	keywords []string
}

// Declaration order doubles as the tie-break order for equally sized groups.
var topics = []topic{
	{"Politics", []string{"politics", "government", "election", "trump", "biden", "congress", "senate"}},
	{"Technology", []string{"tech", "ai", "software", "apple", "google", "microsoft", "android", "iphone"}},
	{"Business", []string{"business", "economy", "market", "stock", "company", "startup", "investment"}},
	{"Sports", []string{"sports", "game", "player", "team", "football", "basketball", "baseball"}},
	{"Entertainment", []string{"movie", "film", "celebrity", "actor", "music", "hollywood", "star"}},
	{"Science", []string{"science", "research", "study", "discovery", "space", "climate"}},
	{"Health", []string{"health", "medical", "disease", "treatment", "doctor", "patient", "medicine"}},
}

const otherTopic = "Other"

// GroupByTopic partitions articles into keyword-matched topic groups. An
// article lands in the first topic whose keywords appear in its title or
// summary, otherwise in Other. Groups come back largest first.
func GroupByTopic(articles []models.Article) []models.TopicGroup {
	if len(articles) == 0 {
		return nil
	}

	buckets := make(map[string][]models.Article, len(topics)+1)
	for _, a := range articles {
		label := topicFor(a)
		buckets[label] = append(buckets[label], a)
	}

	groups := make([]models.TopicGroup, 0, len(buckets))
	for _, tp := range topics {
		if members, ok := buckets[tp.label]; ok {
			groups = append(groups, models.TopicGroup{Topic: tp.label, Articles: members})
		}
	}
	if members, ok := buckets[otherTopic]; ok {
		groups = append(groups, models.TopicGroup{Topic: otherTopic, Articles: members})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return len(groups[i].Articles) > len(groups[j].Articles)
	})
	return groups
}

func topicFor(a models.Article) string {
	text := strings.ToLower(a.Title + " " + a.Summary)
	for _, tp := range topics {
		for _, kw := range tp.keywords {
			if strings.Contains(text, kw) {
				return tp.label
			}
		}
	}
	return otherTopic
}
