package preview

import (
	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// Markdown converts rendered page HTML to markdown. Used for layout exports
// and for feeding page content to text-only consumers.
func Markdown(pageHTML string) (string, error) {
	return htmltomarkdown.ConvertString(pageHTML)
}
