package model

// Document is one text-bearing file lifted out of a repository checkout.
// Source is the path relative to the checkout root.
type Document struct {
	Source  string
	Content string
}

// Chunk is a single overlapping window cut from a Document. It inherits the
// Document's Source so answers can cite where their context came from.
type Chunk struct {
	Text   string
	Source string
}
