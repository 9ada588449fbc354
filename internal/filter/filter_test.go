package filter

import (
	"reflect"
	"testing"
)

func names(versions ...string) []string {
	out := make([]string, 0, len(versions))
	for _, v := range versions {
		out = append(out, "/data/mms1/fgm/srvy/l2/2015/10/mms1_fgm_srvy_l2_20151016_v"+v+".cdf")
	}
	return out
}

func TestApplyLatestKeepsHighestPerIdentity(t *testing.T) {
	in := names("1.0.0", "2.0.0", "3.0.0")
	got := Apply(in, Policy{Latest: true})
	if !reflect.DeepEqual(got, names("3.0.0")) {
		t.Fatalf("unexpected latest result: %v", got)
	}
}

func TestApplyLatestIsPerIdentity(t *testing.T) {
	in := []string{
		"mms1_fgm_srvy_l2_20151016_v4.18.0.cdf",
		"mms1_fgm_srvy_l2_20151016_v4.17.0.cdf",
		"mms1_fgm_srvy_l2_20151017_v4.16.0.cdf",
	}
	got := Apply(in, Policy{Latest: true})
	want := []string{
		"mms1_fgm_srvy_l2_20151016_v4.18.0.cdf",
		"mms1_fgm_srvy_l2_20151017_v4.16.0.cdf",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestApplyMajorKeepsAllMinorsOfHighestMajor(t *testing.T) {
	in := names("1.0.0", "1.2.0", "2.0.0", "2.1.0")
	got := Apply(in, Policy{Major: true})
	if !reflect.DeepEqual(got, names("2.0.0", "2.1.0")) {
		t.Fatalf("unexpected major result: %v", got)
	}
}

func TestApplyMinVersion(t *testing.T) {
	in := names("1.0.0", "1.5.0", "2.0.0", "2.1.0")
	got := Apply(in, Policy{MinVersion: "2.0"})
	if !reflect.DeepEqual(got, names("2.0.0", "2.1.0")) {
		t.Fatalf("unexpected min result: %v", got)
	}
}

func TestApplyExactVersion(t *testing.T) {
	in := names("4.17.0", "4.18.0")
	got := Apply(in, Policy{Version: "4.18.0"})
	if !reflect.DeepEqual(got, names("4.18.0")) {
		t.Fatalf("unexpected exact result: %v", got)
	}
	if got := Apply(in, Policy{Version: "9.9.9"}); len(got) != 0 {
		t.Fatalf("expected empty result, got %v", got)
	}
}

func TestApplyDefaultPassesThroughSorted(t *testing.T) {
	in := []string{"b_v1.0.0.cdf", "notes.txt", "a_v1.0.0.cdf"}
	got := Apply(in, Policy{})
	want := []string{"a_v1.0.0.cdf", "b_v1.0.0.cdf", "notes.txt"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if in[0] != "b_v1.0.0.cdf" {
		t.Fatalf("input slice must not be reordered")
	}
}

func TestApplyIsIdempotentOnSingleVersion(t *testing.T) {
	in := names("3.1.0")
	for _, policy := range []Policy{{}, {Latest: true}, {Major: true}, {MinVersion: "3.0.0"}, {Version: "3.1.0"}} {
		got := Apply(in, policy)
		if !reflect.DeepEqual(got, in) {
			t.Fatalf("policy %s changed a single-version list: %v", policy.Mode(), got)
		}
		if again := Apply(got, policy); !reflect.DeepEqual(again, got) {
			t.Fatalf("policy %s is not idempotent: %v", policy.Mode(), again)
		}
	}
}

func TestPolicyValidate(t *testing.T) {
	testCases := []struct {
		name      string
		policy    Policy
		shouldErr bool
	}{
		{"none", Policy{}, false},
		{"latest", Policy{Latest: true}, false},
		{"conflict", Policy{Latest: true, Major: true}, true},
		{"bad threshold", Policy{MinVersion: "abc"}, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.policy.Validate()
			if tc.shouldErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tc.shouldErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestIdentityStripsVersion(t *testing.T) {
	if got := Identity("/x/mms1_fgm_brst_l2_20151016130524_v4.18.0.cdf"); got != "mms1_fgm_brst_l2_20151016130524" {
		t.Fatalf("unexpected identity %s", got)
	}
}
