package whatsapp

import "testing"

func TestResolveChatID(t *testing.T) {
	cases := map[string]ChatID{
		"5511999999999@g.us":        "5511999999999@g.us",
		"120363025246125888@g.us":   "120363025246125888@g.us",
		"5511999999999999":          "5511999999999999@g.us",
		"5511999999999":             "5511999999999@c.us",
		"551199999999999":           "551199999999999@c.us",
		" 5511999999999 ":           "5511999999999@c.us",
		"120363025246125888-16xxxx": "120363025246125888-16xxxx@g.us",
	}

	for input, expected := range cases {
		if got := ResolveChatID(input); got != expected {
			t.Fatalf("ResolveChatID(%q)=%s, expected %s", input, got, expected)
		}
	}
}

func TestChatIDIsGroup(t *testing.T) {
	if !ResolveChatID("5511999999999999").IsGroup() {
		t.Fatalf("16 char id should be a group")
	}
	if ResolveChatID("5511999999999").IsGroup() {
		t.Fatalf("13 char id should not be a group")
	}
}
