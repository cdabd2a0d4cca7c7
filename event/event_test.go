// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePost(t *testing.T) {
	line := "1|10|2023-01-01T00:00:00.000Z|img.jpg|1.2.3.4|Firefox|en|hello world|[1, 2, 3]|7|42"
	e, err := Decode(line)
	require.NoError(t, err)
	assert.Equal(t, KindPost, e.Kind)
	assert.Equal(t, uint64(1), e.PostId)
	assert.Equal(t, uint64(10), e.PersonId)
	assert.Equal(t, uint64(7), e.ForumId)
	assert.Equal(t, []uint64{1, 2, 3}, e.Tags)
	assert.Equal(t, "hello world", e.Content)
	assert.Equal(t, PostId(1), e.Id())
	assert.True(t, e.Timestamp().Equal(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestDecodeLike(t *testing.T) {
	e, err := Decode("12|1|2023-01-01T00:05:00Z")
	require.NoError(t, err)
	assert.Equal(t, KindLike, e.Kind)
	assert.Equal(t, uint64(12), e.PersonId)
	assert.Equal(t, uint64(1), e.LikePostId)
	assert.Equal(t, PostId(1), e.TargetId())
}

func TestDecodeCommentReplyToPost(t *testing.T) {
	line := "21|11|2023-01-01T00:06:40Z|1.2.3.4|Chrome|nice post|1||999"
	e, err := Decode(line)
	require.NoError(t, err)
	assert.Equal(t, KindComment, e.Kind)
	require.NotNil(t, e.ReplyToPostId)
	assert.Nil(t, e.ReplyToCommentId)
	assert.Equal(t, uint64(1), *e.ReplyToPostId)
	assert.Equal(t, PostId(1), e.TargetId())
	assert.False(t, e.IsReplyToComment())
}

func TestDecodeCommentReplyToComment(t *testing.T) {
	line := "22|12|2023-01-01T00:08:20Z|1.2.3.4|Chrome|i agree||21|999"
	e, err := Decode(line)
	require.NoError(t, err)
	require.NotNil(t, e.ReplyToCommentId)
	assert.Nil(t, e.ReplyToPostId)
	assert.Equal(t, CommentId(21), e.TargetId())
	assert.True(t, e.IsReplyToComment())
}

func TestDecodeCommentBothReplyFieldsSet(t *testing.T) {
	line := "23|12|2023-01-01T00:08:20Z|1.2.3.4|Chrome|bad|1|2|999"
	_, err := Decode(line)
	require.Error(t, err)
}

func TestDecodeUnknownSchema(t *testing.T) {
	_, err := Decode("a|b")
	require.Error(t, err)
	var de *DecodeError
	assert.ErrorAs(t, err, &de)
}

func TestIsWatermark(t *testing.T) {
	ts, ok := IsWatermark("WATERMARK|1000")
	require.True(t, ok)
	assert.Equal(t, int64(1000), ts)

	_, ok2 := IsWatermark("1|2|3")
	assert.False(t, ok2)
}

func TestTaggedIdNoCollision(t *testing.T) {
	p := PostId(5)
	c := CommentId(5)
	assert.NotEqual(t, p, c)
}
