package moltbook

import "encoding/json"

// Optional attribute fields are pointers so that fields absent from a given
// API response stay nil and never clobber previously stored values. Every
// record also keeps the raw response object for the loosely structured
// remainder the API attaches to entities.

// Submolt represents a community on the platform
type Submolt struct {
	Name            string  `json:"name"`
	DisplayName     *string `json:"display_name"`
	Description     *string `json:"description"`
	SubscriberCount *int64  `json:"subscriber_count"`
	CreatedAt       *string `json:"created_at"`

	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON keeps the raw response payload alongside the typed fields
func (s *Submolt) UnmarshalJSON(data []byte) error {
	type alias Submolt
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*s = Submolt(a)
	s.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// Post represents a submission to a submolt
type Post struct {
	ID           string  `json:"id"`
	Title        *string `json:"title"`
	Content      *string `json:"content"`
	Author       *string `json:"author"`
	Submolt      *string `json:"submolt"`
	UpvoteCount  *int64  `json:"upvotes"`
	CommentCount *int64  `json:"comment_count"`
	CreatedAt    *string `json:"created_at"`

	Raw json.RawMessage `json:"-"`
}

func (p *Post) UnmarshalJSON(data []byte) error {
	type alias Post
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*p = Post(a)
	p.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// Comment represents a comment on a post. PostID is filled in by the client
// when the API omits it from nested comment objects.
type Comment struct {
	ID          string  `json:"id"`
	PostID      string  `json:"post_id"`
	Author      *string `json:"author"`
	Content     *string `json:"content"`
	ParentID    *string `json:"parent_id"`
	UpvoteCount *int64  `json:"upvotes"`
	CreatedAt   *string `json:"created_at"`

	Raw json.RawMessage `json:"-"`
}

func (c *Comment) UnmarshalJSON(data []byte) error {
	type alias Comment
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*c = Comment(a)
	c.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// Agent represents an agent profile. Name is the stable identity.
type Agent struct {
	Name          string  `json:"name"`
	Description   *string `json:"description"`
	Karma         *int64  `json:"karma"`
	FollowerCount *int64  `json:"follower_count"`
	CreatedAt     *string `json:"created_at"`

	Raw json.RawMessage `json:"-"`
}

func (a *Agent) UnmarshalJSON(data []byte) error {
	type alias Agent
	var aa alias
	if err := json.Unmarshal(data, &aa); err != nil {
		return err
	}
	*a = Agent(aa)
	a.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// Moderator represents a moderator assignment within a submolt. Submolt is
// filled in by the client from the request path.
type Moderator struct {
	Submolt   string  `json:"-"`
	AgentName string  `json:"name"`
	Role      *string `json:"role"`

	Raw json.RawMessage `json:"-"`
}

func (m *Moderator) UnmarshalJSON(data []byte) error {
	type alias Moderator
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*m = Moderator(a)
	m.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// PostDetail bundles a post with its comments as served by the post endpoint
type PostDetail struct {
	Post     *Post     `json:"post"`
	Comments []Comment `json:"comments"`
}

// PlatformStats holds the platform-wide aggregate counts used for validation
type PlatformStats struct {
	Agents   int64 `json:"agents"`
	Submolts int64 `json:"submolts"`
	Posts    int64 `json:"posts"`
	Comments int64 `json:"comments"`
}

// Complete reports whether every aggregate is non-zero. The stats endpoint
// intermittently serves zeroes, so incomplete responses are refetched.
func (s *PlatformStats) Complete() bool {
	return s.Agents > 0 && s.Submolts > 0 && s.Posts > 0 && s.Comments > 0
}

// submoltsResponse wraps the paginated submolt listing
type submoltsResponse struct {
	Submolts []Submolt `json:"submolts"`
}

// postsResponse wraps the paginated post listing
type postsResponse struct {
	Posts []Post `json:"posts"`
}

// postDetailResponse wraps a single post with comments
type postDetailResponse struct {
	Success  bool      `json:"success"`
	Post     *Post     `json:"post"`
	Comments []Comment `json:"comments"`
}

// agentProfileResponse wraps a single agent profile
type agentProfileResponse struct {
	Success bool   `json:"success"`
	Agent   *Agent `json:"agent"`
}

// moderatorsResponse wraps a submolt's moderator list
type moderatorsResponse struct {
	Moderators []Moderator `json:"moderators"`
}
