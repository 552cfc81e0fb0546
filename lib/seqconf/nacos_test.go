package seqconf

import (
	"errors"
	"testing"

	"github.com/nacos-group/nacos-sdk-go/v2/vo"
)

type fakeConfigClient struct {
	content   string
	err       error
	listener  func(namespace, group, dataId, data string)
	cancelled bool
	closed    bool
}

func (f *fakeConfigClient) GetConfig(param vo.ConfigParam) (string, error) {
	return f.content, f.err
}

func (f *fakeConfigClient) ListenConfig(param vo.ConfigParam) error {
	f.listener = param.OnChange
	return nil
}

func (f *fakeConfigClient) CancelListenConfig(param vo.ConfigParam) error {
	f.cancelled = true
	return nil
}

func (f *fakeConfigClient) CloseClient() {
	f.closed = true
}

func TestNacosSource(t *testing.T) {
	client := &fakeConfigClient{content: "GLOBAL=dn1\n"}
	src := newNacosSource(client, NacosConfig{DataID: "sequence_db_conf"}, true)

	if src.param.Group != "DEFAULT_GROUP" {
		t.Errorf("expected default group, got %s", src.param.Group)
	}

	mapping, err := src.Load()
	if err != nil {
		t.Fatal(err)
	}
	if mapping["global"] != "dn1" {
		t.Fatalf("expected global=dn1, got %v", mapping)
	}

	var got []map[string]string
	if err := src.Watch(func(m map[string]string) { got = append(got, m) }); err != nil {
		t.Fatal(err)
	}
	if client.listener == nil {
		t.Fatal("expected a registered listener")
	}

	client.listener("", "DEFAULT_GROUP", "sequence_db_conf", "=dn1\n")
	client.listener("", "DEFAULT_GROUP", "sequence_db_conf", "GLOBAL=dn2\n")
	if len(got) != 1 || got[0]["global"] != "dn2" {
		t.Fatalf("expected one valid change, got %v", got)
	}

	if err := src.Close(); err != nil {
		t.Fatal(err)
	}
	if !client.cancelled || !client.closed {
		t.Errorf("expected listener cancelled and client closed")
	}
}

func TestNacosSourceLoadError(t *testing.T) {
	client := &fakeConfigClient{err: errors.New("unreachable")}
	src := newNacosSource(client, NacosConfig{DataID: "seq", Group: "dble"}, false)
	if _, err := src.Load(); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewNacosSourceValidation(t *testing.T) {
	if _, err := NewNacosSource(NacosConfig{ServerAddrs: []string{"127.0.0.1:8848"}}, false); err == nil {
		t.Errorf("expected error for missing data id")
	}
	if _, err := NewNacosSource(NacosConfig{DataID: "seq"}, false); err == nil {
		t.Errorf("expected error for missing servers")
	}
	if _, err := NewNacosSource(NacosConfig{DataID: "seq", ServerAddrs: []string{"no-port"}}, false); err == nil {
		t.Errorf("expected error for invalid server address")
	}
}
