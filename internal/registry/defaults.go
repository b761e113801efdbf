package registry

import "news_aggregator/internal/domain"

// LocalSources is the curated list of known-good regional feeds.
var LocalSources = []domain.DirectoryEntry{
	{Name: "Lewiston Tribune", URL: "https://lmtribune.com/rss"},
	{Name: "Idaho Statesman", URL: "https://idahostatesman.com/local/rss"},
	{Name: "KLEW TV", URL: "https://klewtv.com/rss"},
	{Name: "The Moscow-Pullman Daily News", URL: "https://dnews.com/rss"},
	{Name: "Idaho County Free Press", URL: "https://idahocountyfreepress.com/rss"},
}
