// Package webfetch fetches web pages over HTTP/HTTPS and converts their HTML
// into Markdown for language models.
//
// [Fetcher.Fetch] performs a single request. [Fetcher.Node] adapts it into a
// graph node that reads the URL from one state field and writes the Markdown
// into another, so a page can feed a summarizing model node.
package webfetch
