package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

type BlockType string

const (
	BlockParagraph   BlockType = "p"
	BlockEntityEmbed BlockType = "entity"
	BlockHeading1    BlockType = "h1"
	BlockHeading2    BlockType = "h2"
	BlockHeading3    BlockType = "h3"
	BlockHeading4    BlockType = "h4"
	BlockHeading5    BlockType = "h5"
	BlockHeading6    BlockType = "h6"
	BlockStrong      BlockType = "strong"
	BlockEmphasis    BlockType = "em"
	BlockList        BlockType = "ul"
	BlockOrderedList BlockType = "ol"
	BlockListItem    BlockType = "li"
	BlockLink        BlockType = "a"
)

// MaxBlockDepth bounds nesting of a block tree.
const MaxBlockDepth = 32

// EntityRef is an inline reference to a medication.
type EntityRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Block is a renderable content node. Contents render in array order.
type Block struct {
	Type     BlockType `json:"type"`
	Role     string    `json:"role,omitempty"`
	Href     string    `json:"href,omitempty"`
	Contents []Inline  `json:"contents"`
}

// Inline is exactly one of text, an entity reference or a nested block.
type Inline struct {
	Text   string
	Entity *EntityRef
	Block  *Block
}

func TextInline(text string) Inline {
	return Inline{Text: text}
}

func EntityInline(ref EntityRef) Inline {
	return Inline{Entity: &ref}
}

func Paragraph(role string, contents ...Inline) Block {
	if contents == nil {
		contents = []Inline{}
	}
	return Block{Type: BlockParagraph, Role: role, Contents: contents}
}

func (i Inline) MarshalJSON() ([]byte, error) {
	switch {
	case i.Entity != nil:
		return json.Marshal(i.Entity)
	case i.Block != nil:
		return json.Marshal(i.Block)
	default:
		return json.Marshal(i.Text)
	}
}

func (i *Inline) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errors.New("empty inline content")
	}
	switch data[0] {
	case '"':
		*i = Inline{}
		return json.Unmarshal(data, &i.Text)
	case '{':
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(data, &probe); err != nil {
			return err
		}
		if _, ok := probe["type"]; ok {
			var b Block
			if err := json.Unmarshal(data, &b); err != nil {
				return err
			}
			*i = Inline{Block: &b}
			return nil
		}
		if _, ok := probe["id"]; ok {
			var ref EntityRef
			if err := json.Unmarshal(data, &ref); err != nil {
				return err
			}
			*i = Inline{Entity: &ref}
			return nil
		}
		return errors.New("inline object is neither a block nor an entity reference")
	default:
		return fmt.Errorf("unsupported inline content %q", string(data[:1]))
	}
}

// Validate checks block types and that the tree stays within MaxBlockDepth.
func (b *Block) Validate() error {
	return b.validate(1)
}

func (b *Block) validate(depth int) error {
	if depth > MaxBlockDepth {
		return fmt.Errorf("block tree deeper than %d", MaxBlockDepth)
	}
	if !b.Type.valid() {
		return fmt.Errorf("unknown block type %q", b.Type)
	}
	if b.Type == BlockEntityEmbed {
		if len(b.Contents) != 1 || b.Contents[0].Entity == nil {
			return errors.New("entity block must hold exactly one entity reference")
		}
	}
	for _, c := range b.Contents {
		if c.Block == nil {
			continue
		}
		if err := c.Block.validate(depth + 1); err != nil {
			return err
		}
	}
	return nil
}

func (t BlockType) valid() bool {
	switch t {
	case BlockParagraph, BlockEntityEmbed, BlockHeading1, BlockHeading2, BlockHeading3,
		BlockHeading4, BlockHeading5, BlockHeading6, BlockStrong, BlockEmphasis,
		BlockList, BlockOrderedList, BlockListItem, BlockLink:
		return true
	default:
		return false
	}
}
