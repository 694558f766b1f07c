package vault

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// fakeS3 serves the path-style subset of the S3 API the vault uses.
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	objects map[string][]byte
}

type listResult struct {
	XMLName     xml.Name `xml:"ListBucketResult"`
	Name        string   `xml:"Name"`
	Prefix      string   `xml:"Prefix"`
	KeyCount    int      `xml:"KeyCount"`
	MaxKeys     int      `xml:"MaxKeys"`
	IsTruncated bool     `xml:"IsTruncated"`
	Contents    []struct {
		Key  string `xml:"Key"`
		Size int    `xml:"Size"`
	} `xml:"Contents"`
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)
	if parts[0] != f.bucket {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `<Error><Code>NoSuchBucket</Code><Message>no such bucket</Message></Error>`)
		return
	}
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodHead && key == "":
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet && key == "":
		prefix := r.URL.Query().Get("prefix")
		res := listResult{Name: f.bucket, Prefix: prefix, MaxKeys: 1000}
		var keys []string
		for k := range f.objects {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			res.Contents = append(res.Contents, struct {
				Key  string `xml:"Key"`
				Size int    `xml:"Size"`
			}{k, len(f.objects[k])})
		}
		res.KeyCount = len(keys)
		w.Header().Set("Content-Type", "application/xml")
		xml.NewEncoder(w).Encode(res)
	case r.Method == http.MethodPut:
		body, err := readBody(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.objects[key] = body
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet:
		data, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `<Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Write(data)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// readBody undoes aws-chunked framing when the client streams with trailers.
func readBody(r *http.Request) ([]byte, error) {
	if !strings.Contains(r.Header.Get("Content-Encoding"), "aws-chunked") {
		return io.ReadAll(r.Body)
	}
	br := bufio.NewReader(r.Body)
	var out bytes.Buffer
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, err
		}
		sizeHex := strings.TrimSpace(strings.SplitN(line, ";", 2)[0])
		n, err := strconv.ParseInt(sizeHex, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("bad chunk size %q", sizeHex)
		}
		if n == 0 {
			return out.Bytes(), nil
		}
		if _, err := io.CopyN(&out, br, n); err != nil {
			return nil, err
		}
		br.ReadString('\n')
	}
}

func newTestS3Vault(t *testing.T, prefix string) (*S3Vault, *fakeS3) {
	t.Helper()
	fake := &fakeS3{bucket: "snapshots-bucket", objects: make(map[string][]byte)}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client := s3.New(s3.Options{
		Region:                     "eu-central-1",
		BaseEndpoint:               aws.String(srv.URL),
		UsePathStyle:               true,
		Credentials:                credentials.NewStaticCredentialsProvider("key", "secret", ""),
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	})
	return NewS3VaultFromClient("test-s3", client, fake.bucket, prefix), fake
}

func TestS3Vault_PutGetList(t *testing.T) {
	v, fake := newTestS3Vault(t, "/claimer/")

	for _, name := range []string{"entries-2.db.age", "entries-1.db.age"} {
		data := "snapshot " + name
		if err := v.PutSnapshot(name, strings.NewReader(data), int64(len(data))); err != nil {
			t.Fatalf("PutSnapshot(%s) error = %v", name, err)
		}
	}
	fake.mu.Lock()
	fake.objects["claimer/snapshots/nested/ignored"] = []byte("x")
	_, ok := fake.objects["claimer/snapshots/entries-1.db.age"]
	fake.mu.Unlock()
	if !ok {
		t.Fatal("snapshot not stored under prefix")
	}

	names, err := v.ListSnapshots()
	if err != nil {
		t.Fatalf("ListSnapshots() error = %v", err)
	}
	if strings.Join(names, ",") != "entries-1.db.age,entries-2.db.age" {
		t.Errorf("ListSnapshots() = %v", names)
	}

	var buf bytes.Buffer
	if err := v.GetSnapshot("entries-2.db.age", &buf); err != nil {
		t.Fatalf("GetSnapshot() error = %v", err)
	}
	if buf.String() != "snapshot entries-2.db.age" {
		t.Errorf("GetSnapshot() = %q", buf.String())
	}
}

func TestS3Vault_Errors(t *testing.T) {
	v, _ := newTestS3Vault(t, "")

	var buf bytes.Buffer
	if err := v.GetSnapshot("missing.db", &buf); err == nil {
		t.Error("GetSnapshot() expected error for missing object")
	}
	if err := v.PutSnapshot("short.db", strings.NewReader("abc"), 10); err == nil {
		t.Error("PutSnapshot() expected size mismatch error")
	}
	if err := v.PutSnapshot("../x", strings.NewReader("a"), 1); err == nil {
		t.Error("PutSnapshot() expected invalid name error")
	}
}

func TestS3Vault_ValidateSetup(t *testing.T) {
	v, _ := newTestS3Vault(t, "")
	if err := v.ValidateSetup(); err != nil {
		t.Errorf("ValidateSetup() error = %v", err)
	}

	v.bucket = "other-bucket"
	if err := v.ValidateSetup(); err == nil {
		t.Error("ValidateSetup() expected error for unknown bucket")
	}
}
