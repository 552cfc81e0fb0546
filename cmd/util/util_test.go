package util

import (
	"reflect"
	"strings"
	"testing"

	"github.com/yanqingluo/dble/rpc/common"
)

func TestWrapString(t *testing.T) {
	text := strings.Repeat("word ", 30)
	for _, line := range strings.Split(WrapString(text), "\n") {
		if len(line) > Wrap {
			t.Errorf("Line longer than %d: %q", Wrap, line)
		}
	}
	if WrapString("") != "" {
		t.Error("Expected empty string")
	}
}

func TestParseShards(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []common.ServerShard
		wantErr bool
	}{
		{"Single", "100=table(lstore)", []common.ServerShard{{ShardID: 100, Type: common.ShardTypeLocalTable}}, false},
		{"Mixed", "100=table(pstore), 1=allocator ,200=table(dstore)", []common.ServerShard{
			{ShardID: 100, Type: common.ShardTypePebbleTable},
			{ShardID: 1, Type: common.ShardTypeAllocator},
			{ShardID: 200, Type: common.ShardTypeRemoteTable},
		}, false},
		{"MissingType", "100", nil, true},
		{"InvalidID", "abc=allocator", nil, true},
		{"InvalidType", "1=lockmgr(lstore)", nil, true},
		{"Duplicate", "1=allocator,1=table(lstore)", nil, true},
		{"Empty", "", nil, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseShards(tc.input)
			if (err != nil) != tc.wantErr {
				t.Fatalf("error = %v, wantErr %t", err, tc.wantErr)
			}
			if !tc.wantErr && !reflect.DeepEqual(got, tc.want) {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestParseTargets(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []common.BackendTarget
		wantErr bool
	}{
		{"Local", "dn1=local:100", []common.BackendTarget{{Name: "dn1", URL: "local:100"}}, false},
		{"Several", "dn1=local:100,dn2=postgres://u:p@db:5432/seq?sslmode=disable", []common.BackendTarget{
			{Name: "dn1", URL: "local:100"},
			{Name: "dn2", URL: "postgres://u:p@db:5432/seq?sslmode=disable"},
		}, false},
		{"ReadOnly", "dn3=redis://cache:6379/0!ro", []common.BackendTarget{
			{Name: "dn3", URL: "redis://cache:6379/0", ReadOnly: true},
		}, false},
		{"MongoHostList", "dn4=mongodb://a:27017,b:27017/seq?replicaSet=rs0,dn5=local:1", []common.BackendTarget{
			{Name: "dn4", URL: "mongodb://a:27017,b:27017/seq?replicaSet=rs0"},
			{Name: "dn5", URL: "local:1"},
		}, false},
		{"Empty", "", nil, false},
		{"MissingURL", "dn1=", nil, true},
		{"InvalidName", "d n=local:1", nil, true},
		{"Duplicate", "dn1=local:1,dn1=local:2", nil, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseTargets(tc.input)
			if (err != nil) != tc.wantErr {
				t.Fatalf("error = %v, wantErr %t", err, tc.wantErr)
			}
			if !tc.wantErr && !reflect.DeepEqual(got, tc.want) {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestReplicaID(t *testing.T) {
	id, err := ReplicaID("3")
	if err != nil || id != 3 {
		t.Errorf("Expected numeric id 3, got %d (%v)", id, err)
	}

	a, _ := ReplicaID("node-1")
	b, _ := ReplicaID("node-1")
	c, _ := ReplicaID("node-2")
	if a != b || a == c || a == 0 {
		t.Errorf("Unexpected hashed ids: %d %d %d", a, b, c)
	}

	for _, invalid := range []string{"", "0", "  "} {
		if _, err := ReplicaID(invalid); err == nil {
			t.Errorf("Expected error for %q", invalid)
		}
	}
}

func TestParseClusterMembers(t *testing.T) {
	members, err := ParseClusterMembers("1=localhost:63001, 2=localhost:63002")
	if err != nil {
		t.Fatalf("ParseClusterMembers failed: %v", err)
	}
	want := map[uint64]string{1: "localhost:63001", 2: "localhost:63002"}
	if !reflect.DeepEqual(members, want) {
		t.Errorf("got %v, want %v", members, want)
	}

	for _, invalid := range []string{"1", "1=", "1=a:1,1=b:2"} {
		if _, err := ParseClusterMembers(invalid); err == nil {
			t.Errorf("Expected error for %q", invalid)
		}
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList(" a, ,b,c ,")
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("Unexpected split: %v", got)
	}
}
