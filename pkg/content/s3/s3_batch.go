package s3

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/dittofiles/pkg/content"
)

// List returns every content key under the configured prefix.
//
// Objects under the prefix whose names are not valid content keys (for
// example objects written by other tools) are skipped.
func (s *S3ContentStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var keys []string

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.keyPrefix),
	})

	for paginator.HasMorePages() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}

		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			key, ok := s.trimPrefix(*obj.Key)
			if !ok || content.ValidateKey(key) != nil {
				continue
			}
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)
	return keys, nil
}

// DeleteBatch removes keys with DeleteObjects, chunked at 1000 keys per request.
func (s *S3ContentStore) DeleteBatch(ctx context.Context, keys []string) (map[string]error, error) {
	failures := make(map[string]error)

	for i := 0; i < len(keys); i += maxDeleteBatch {
		if err := ctx.Err(); err != nil {
			for j := i; j < len(keys); j++ {
				failures[keys[j]] = err
			}
			return failures, err
		}

		end := min(i+maxDeleteBatch, len(keys))
		batch := keys[i:end]

		objects := make([]types.ObjectIdentifier, 0, len(batch))
		for _, key := range batch {
			if err := content.ValidateKey(key); err != nil {
				failures[key] = err
				continue
			}
			objects = append(objects, types.ObjectIdentifier{
				Key: aws.String(s.objectKey(key)),
			})
		}
		if len(objects) == 0 {
			continue
		}

		result, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{
				Objects: objects,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			for _, obj := range objects {
				key, _ := s.trimPrefix(*obj.Key)
				failures[key] = err
			}
			continue
		}

		for _, deleteErr := range result.Errors {
			if deleteErr.Key == nil {
				continue
			}
			key, _ := s.trimPrefix(*deleteErr.Key)

			errMsg := "unknown error"
			if deleteErr.Code != nil && deleteErr.Message != nil {
				errMsg = fmt.Sprintf("%s: %s", *deleteErr.Code, *deleteErr.Message)
			}
			failures[key] = errors.New(errMsg)
		}
	}

	return failures, nil
}
