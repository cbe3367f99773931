package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
)

// AzureStore stores images as block blobs in one container.
type AzureStore struct {
	client    *azblob.Client
	container string
	baseURL   string
}

// NewAzure uses shared key auth; endpoint defaults to https://{account}.blob.core.windows.net.
func NewAzure(accountName, accountKey, container, endpoint, publicBaseURL string) (*AzureStore, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, err
	}
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.blob.core.windows.net", accountName)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(endpoint, credential, nil)
	if err != nil {
		return nil, err
	}

	base := publicBaseURL
	if base == "" {
		base = strings.TrimRight(endpoint, "/") + "/" + container
	}
	return &AzureStore{client: client, container: container, baseURL: strings.TrimRight(base, "/")}, nil
}

func (s *AzureStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(io.LimitReader(r, size))
	if err != nil {
		return fmt.Errorf("reading %s: %w", key, err)
	}
	_, err = s.client.UploadBuffer(ctx, s.container, key, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return fmt.Errorf("azure put %s: %w", key, err)
	}
	return nil
}

func (s *AzureStore) PublicURL(key string) string {
	return s.baseURL + "/" + key
}

func (s *AzureStore) Delete(ctx context.Context, key string) error {
	if _, err := s.client.DeleteBlob(ctx, s.container, key, nil); err != nil {
		return fmt.Errorf("azure delete %s: %w", key, err)
	}
	return nil
}

func (s *AzureStore) Check(ctx context.Context) error {
	pager := s.client.NewListBlobsFlatPager(s.container, &azblob.ListBlobsFlatOptions{MaxResults: int32Ptr(1)})
	_, err := pager.NextPage(ctx)
	return err
}

func int32Ptr(v int32) *int32 { return &v }
