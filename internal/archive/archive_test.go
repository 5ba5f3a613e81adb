package archive

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/avstrong/hotel/internal/document"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeClient) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}

	f.input = in

	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}

	f.body = body

	return &s3.PutObjectOutput{}, nil
}

func TestPutUsesPrefixedKey(t *testing.T) {
	client := &fakeClient{}
	a := newWithClient(client, Config{Bucket: "invoices", Prefix: "hotel/issued"})

	require.NoError(t, a.Put(context.Background(), "b-1/inv-1.xlsx", []byte("xlsx")))

	assert.Equal(t, "invoices", aws.ToString(client.input.Bucket))
	assert.Equal(t, "hotel/issued/b-1/inv-1.xlsx", aws.ToString(client.input.Key))
	assert.Equal(t, document.ContentType, aws.ToString(client.input.ContentType))
	assert.Equal(t, []byte("xlsx"), client.body)
}

func TestPutWrapsClientError(t *testing.T) {
	sentinel := errors.New("access denied")
	a := newWithClient(&fakeClient{err: sentinel}, Config{Bucket: "invoices"})

	err := a.Put(context.Background(), "k", nil)
	assert.ErrorIs(t, err, sentinel)
}
