package reader

// Cursor walks the words of a list of paragraphs. It holds positions only;
// the paragraphs are passed in on each call, so a catalog can swap the
// buffered chunk underneath it.
type Cursor struct {
	paragraph int
	offset    int
	word      int
	total     int
}

// Reset moves to the first word of the first paragraph.
func (c *Cursor) Reset(paragraphs []string) {
	c.paragraph, c.offset, c.word = 0, 0, 0
	c.total = wordTotal(paragraphs, 0)
}

// Clear drops the position without looking at any text. It is used while
// the text is being replaced.
func (c *Cursor) Clear() {
	c.paragraph, c.offset, c.word, c.total = 0, 0, 0, 1
}

// Seek moves to the start of paragraph i. With no paragraphs it clears the
// position and succeeds.
func (c *Cursor) Seek(paragraphs []string, i int) error {
	if len(paragraphs) == 0 {
		c.Clear()
		return nil
	}
	if i < 0 || i >= len(paragraphs) {
		return ErrInvalidParagraphIndex
	}
	c.paragraph, c.offset, c.word = i, 0, 0
	c.total = wordTotal(paragraphs, i)
	return nil
}

// Next returns the next word, moving into the following paragraph when the
// current one is used up. It returns nil at the end of the last paragraph.
func (c *Cursor) Next(paragraphs []string) *WordToken {
	for c.paragraph < len(paragraphs) {
		p := paragraphs[c.paragraph]
		if start, end, next, ok := NextWordBounds(p, c.offset); ok {
			c.offset = next
			c.word++
			tok := NewWordToken(p[start:end])
			return &tok
		}
		if c.paragraph+1 >= len(paragraphs) {
			return nil
		}
		c.paragraph++
		c.offset, c.word = 0, 0
		c.total = wordTotal(paragraphs, c.paragraph)
	}
	return nil
}

// Paragraph returns the zero-based paragraph the cursor is in.
func (c *Cursor) Paragraph() int { return c.paragraph }

// Progress returns the 1-based index of the last word returned and the
// word count of the current paragraph.
func (c *Cursor) Progress() (word, total int) {
	return c.word, max(c.total, 1)
}

// Index is the 1-based paragraph number, or 0 when there are none.
func (c *Cursor) Index(paragraphs []string) int {
	if len(paragraphs) == 0 {
		return 0
	}
	return c.paragraph + 1
}

func wordTotal(paragraphs []string, i int) int {
	if i >= len(paragraphs) {
		return 1
	}
	return max(CountWords(paragraphs[i]), 1)
}
