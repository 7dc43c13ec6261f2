package domain

// Chapter is the extracted form of a single story chapter page.
//
// Content may be empty when extraction found a title but no readable body.
// NextURL/PrevURL are empty when the page has no such navigation.
type Chapter struct {
	Title   string
	Content string
	NextURL string
	PrevURL string
}

// Complete reports whether the chapter is usable for audio generation.
// Incomplete chapters must never be cached.
func (c Chapter) Complete() bool {
	return c.Title != "" && c.Content != ""
}
