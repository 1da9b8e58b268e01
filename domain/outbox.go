package domain

import "iter"

// Outbox is the ordered list of posts taken from outbox.json. Order is archive order.
type Outbox struct {
	posts []*Post
}

func NewOutbox(posts []*Post) *Outbox {
	cp := make([]*Post, len(posts))
	copy(cp, posts)
	return &Outbox{posts: cp}
}

func (o *Outbox) Len() int {
	return len(o.posts)
}

func (o *Outbox) At(i int) *Post {
	return o.posts[i]
}

// All iterates over the posts in archive order
func (o *Outbox) All() iter.Seq2[int, *Post] {
	return func(yield func(int, *Post) bool) {
		for i, p := range o.posts {
			if !yield(i, p) {
				return
			}
		}
	}
}

// Public returns the publicly addressed posts, archive order preserved
func (o *Outbox) Public() []*Post {
	out := make([]*Post, 0, len(o.posts))
	for _, p := range o.posts {
		if p.Public {
			out = append(out, p)
		}
	}
	return out
}
