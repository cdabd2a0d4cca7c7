// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package event defines the tagged-union activity event that flows through
// the pipeline, and the line-oriented CSV decoder that produces it.
package event

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind distinguishes the three event variants.
type Kind int

const (
	KindPost Kind = iota
	KindLike
	KindComment
)

func (k Kind) String() string {
	switch k {
	case KindPost:
		return "Post"
	case KindLike:
		return "Like"
	case KindComment:
		return "Comment"
	default:
		return "Unknown"
	}
}

// NodeKind distinguishes the two id spaces that EventId can tag.
type NodeKind int

const (
	NodePost NodeKind = iota
	NodeComment
)

// Id is a tagged identifier that lets posts and comments share one lookup
// table without their independently-generated 64-bit ids colliding.
type Id struct {
	Kind NodeKind
	Val  uint64
}

func PostId(id uint64) Id    { return Id{NodePost, id} }
func CommentId(id uint64) Id { return Id{NodeComment, id} }

func (i Id) String() string {
	if i.Kind == NodePost {
		return fmt.Sprintf("Post(%d)", i.Val)
	}
	return fmt.Sprintf("Comment(%d)", i.Val)
}

// Event is the tagged union decoded from a single CSV record. Only the
// fields relevant to the event's Kind are meaningful.
type Event struct {
	Kind Kind

	// Post fields.
	PostId   uint64
	ForumId  uint64
	Tags     []uint64
	PostTime time.Time

	// Like fields.
	LikePostId uint64
	LikeTime   time.Time

	// Comment fields.
	CommentId          uint64
	ReplyToPostId      *uint64
	ReplyToCommentId   *uint64
	CommentTime        time.Time

	// Common.
	PersonId uint64
	Content  string
}

// Timestamp returns the event's embedded event-time.
func (e Event) Timestamp() time.Time {
	switch e.Kind {
	case KindPost:
		return e.PostTime
	case KindLike:
		return e.LikeTime
	case KindComment:
		return e.CommentTime
	}
	return time.Time{}
}

// Id returns the tagged identifier of this event, valid only for Post and
// Comment (a Like has no id of its own and cannot itself be a parent).
func (e Event) Id() Id {
	switch e.Kind {
	case KindPost:
		return PostId(e.PostId)
	case KindComment:
		return CommentId(e.CommentId)
	}
	panic("event: Id() called on a Like event")
}

// TargetId returns the id used for partitioned routing by C3: the post's own
// id for Post/Like, the parent id (post or comment) for Comment.
func (e Event) TargetId() Id {
	switch e.Kind {
	case KindPost:
		return PostId(e.PostId)
	case KindLike:
		return PostId(e.LikePostId)
	case KindComment:
		if e.ReplyToPostId != nil {
			return PostId(*e.ReplyToPostId)
		}
		return CommentId(*e.ReplyToCommentId)
	}
	panic("event: TargetId() called on unknown kind")
}

// IsReplyToComment reports whether this is a Comment replying to another
// Comment rather than directly to a Post. C3 broadcasts these.
func (e Event) IsReplyToComment() bool {
	return e.Kind == KindComment && e.ReplyToCommentId != nil
}

func (e Event) String() string {
	switch e.Kind {
	case KindPost:
		return fmt.Sprintf("Post{id=%d person=%d ts=%s forum=%d tags=%v}", e.PostId, e.PersonId, e.PostTime, e.ForumId, e.Tags)
	case KindLike:
		return fmt.Sprintf("Like{person=%d post=%d ts=%s}", e.PersonId, e.LikePostId, e.LikeTime)
	case KindComment:
		parent := "post"
		var pid uint64
		if e.ReplyToCommentId != nil {
			parent = "comment"
			pid = *e.ReplyToCommentId
		} else if e.ReplyToPostId != nil {
			pid = *e.ReplyToPostId
		}
		return fmt.Sprintf("Comment{id=%d person=%d ts=%s reply_to_%s=%d}", e.CommentId, e.PersonId, e.CommentTime, parent, pid)
	}
	return "Event{unknown}"
}

// DecodeError reports a malformed record that could not be matched against
// any of the three known schemas.
type DecodeError struct {
	Record string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("event: cannot decode record %q: %s", e.Record, e.Reason)
}

// Decode parses one '|'-delimited CSV line into an Event, trying the Post,
// Comment, then Like schemas in turn. Field counts differ across the three
// schemas so there is no ambiguity: the first structural match wins.
func Decode(line string) (Event, error) {
	fields := strings.Split(line, "|")

	switch len(fields) {
	case 11:
		return decodePost(fields)
	case 9:
		return decodeComment(fields)
	case 3:
		return decodeLike(fields)
	default:
		return Event{}, &DecodeError{Record: line, Reason: fmt.Sprintf("unexpected field count %d", len(fields))}
	}
}

// decodePost parses: post_id|person_id|creation_date|image_file|ip|browser|lang|content|tags|forum_id|place_id
func decodePost(f []string) (Event, error) {
	postId, err := strconv.ParseUint(f[0], 10, 64)
	if err != nil {
		return Event{}, &DecodeError{strings.Join(f, "|"), "bad post_id"}
	}
	personId, err := strconv.ParseUint(f[1], 10, 64)
	if err != nil {
		return Event{}, &DecodeError{strings.Join(f, "|"), "bad person_id"}
	}
	ts, err := parseTimestamp(f[2])
	if err != nil {
		return Event{}, &DecodeError{strings.Join(f, "|"), "bad creation_date: " + err.Error()}
	}
	tags, err := parseTags(f[8])
	if err != nil {
		return Event{}, &DecodeError{strings.Join(f, "|"), "bad tags: " + err.Error()}
	}
	forumId, err := strconv.ParseUint(f[9], 10, 64)
	if err != nil {
		return Event{}, &DecodeError{strings.Join(f, "|"), "bad forum_id"}
	}
	return Event{
		Kind:     KindPost,
		PostId:   postId,
		PersonId: personId,
		PostTime: ts,
		Content:  f[7],
		Tags:     tags,
		ForumId:  forumId,
	}, nil
}

// decodeLike parses: person_id|post_id|creation_date
func decodeLike(f []string) (Event, error) {
	personId, err := strconv.ParseUint(f[0], 10, 64)
	if err != nil {
		return Event{}, &DecodeError{strings.Join(f, "|"), "bad person_id"}
	}
	postId, err := strconv.ParseUint(f[1], 10, 64)
	if err != nil {
		return Event{}, &DecodeError{strings.Join(f, "|"), "bad post_id"}
	}
	ts, err := parseTimestamp(f[2])
	if err != nil {
		return Event{}, &DecodeError{strings.Join(f, "|"), "bad creation_date: " + err.Error()}
	}
	return Event{
		Kind:       KindLike,
		PersonId:   personId,
		LikePostId: postId,
		LikeTime:   ts,
	}, nil
}

// decodeComment parses: comment_id|person_id|creation_date|ip|browser|content|reply_to_post_id|reply_to_comment_id|place_id
func decodeComment(f []string) (Event, error) {
	commentId, err := strconv.ParseUint(f[0], 10, 64)
	if err != nil {
		return Event{}, &DecodeError{strings.Join(f, "|"), "bad comment_id"}
	}
	personId, err := strconv.ParseUint(f[1], 10, 64)
	if err != nil {
		return Event{}, &DecodeError{strings.Join(f, "|"), "bad person_id"}
	}
	ts, err := parseTimestamp(f[2])
	if err != nil {
		return Event{}, &DecodeError{strings.Join(f, "|"), "bad creation_date: " + err.Error()}
	}

	replyToPost := parseOptionalUint(f[6])
	replyToComment := parseOptionalUint(f[7])
	if (replyToPost == nil) == (replyToComment == nil) {
		return Event{}, &DecodeError{strings.Join(f, "|"), "exactly one reply field must be set"}
	}

	return Event{
		Kind:             KindComment,
		CommentId:        commentId,
		PersonId:         personId,
		CommentTime:      ts,
		Content:          f[5],
		ReplyToPostId:    replyToPost,
		ReplyToCommentId: replyToComment,
	}, nil
}

func parseOptionalUint(s string) *uint64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

// parseTimestamp accepts ISO-8601 with or without a millisecond fraction.
func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02T15:04:05.000Z", s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05Z", s)
}

// parseTags parses the literal "[t1, t2, ...]" tag list into decimal ids.
func parseTags(s string) ([]uint64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	tags := make([]uint64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return nil, err
		}
		tags = append(tags, v)
	}
	return tags, nil
}

// WatermarkPrefix is the leading token of a distinguished watermark record.
const WatermarkPrefix = "WATERMARK|"

// IsWatermark reports whether line is a watermark record, and if so returns
// its embedded epoch-second timestamp.
func IsWatermark(line string) (int64, bool) {
	if !strings.HasPrefix(line, WatermarkPrefix) {
		return 0, false
	}
	ts, err := strconv.ParseInt(strings.TrimPrefix(line, WatermarkPrefix), 10, 64)
	if err != nil {
		return 0, false
	}
	return ts, true
}
