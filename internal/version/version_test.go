// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	info := Info()
	if !strings.HasPrefix(info, "prose-scan "+Version) {
		t.Errorf("unexpected info %q", info)
	}
	if Full()["platform"] != Platform {
		t.Error("full info should carry the platform")
	}
	if Short() != Version {
		t.Error("short should be the bare version")
	}
}
