package game

const alphabetSize = 27 // a-z plus the "qu" edge

const quIndex = 26

type trieNode struct {
	children [alphabetSize]*trieNode
	terminal bool
}

// Dictionary is a case-insensitive word index. It is filled once at startup
// and only read afterwards, so lookups need no locking.
type Dictionary struct {
	root  *trieNode
	words int
}

// NewDictionary creates an empty dictionary
func NewDictionary() *Dictionary {
	return &Dictionary{root: &trieNode{}}
}

func tokenIndex(tok string) int {
	if tok == "qu" {
		return quIndex
	}
	return int(tok[0] - 'a')
}

func checkWord(word string) error {
	if len(word) == 0 {
		return ErrEmptyWord
	}
	if len(word) > MaxWordLength {
		return ErrWordTooLong
	}
	return nil
}

// Insert adds word. Words that are empty, longer than MaxWordLength bytes, or
// made only of skipped characters are rejected.
func (d *Dictionary) Insert(word string) error {
	if err := checkWord(word); err != nil {
		return err
	}
	tokens := Tokenize(word)
	if len(tokens) == 0 {
		return ErrEmptyWord
	}

	node := d.root
	for _, tok := range tokens {
		idx := tokenIndex(tok)
		if node.children[idx] == nil {
			node.children[idx] = &trieNode{}
		}
		node = node.children[idx]
	}
	if !node.terminal {
		node.terminal = true
		d.words++
	}
	return nil
}

// Contains reports whether word, normalized like Insert, was inserted
func (d *Dictionary) Contains(word string) bool {
	if d.root == nil || checkWord(word) != nil {
		return false
	}
	tokens := Tokenize(word)
	if len(tokens) == 0 {
		return false
	}

	node := d.root
	for _, tok := range tokens {
		node = node.children[tokenIndex(tok)]
		if node == nil {
			return false
		}
	}
	return node.terminal
}

// Len returns the number of distinct words
func (d *Dictionary) Len() int {
	return d.words
}

// Release tears the trie down. The dictionary is empty afterwards.
func (d *Dictionary) Release() {
	release(d.root)
	d.root = nil
	d.words = 0
}

func release(n *trieNode) {
	if n == nil {
		return
	}
	for i, child := range n.children {
		release(child)
		n.children[i] = nil
	}
}
