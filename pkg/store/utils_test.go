package store

import (
	"testing"
)

func TestBuildPageClause(t *testing.T) {
	type args struct {
		query  string
		offset int
		limit  int
	}
	tests := []struct {
		name string
		args args
		want string
	}{
		{
			name: "unbounded",
			args: args{
				query: "SELECT * FROM leaderboard_entries",
			},
			want: "SELECT * FROM leaderboard_entries",
		},
		{
			name: "limit",
			args: args{
				query: "SELECT * FROM leaderboard_entries",
				limit: 25,
			},
			want: "SELECT * FROM leaderboard_entries LIMIT 25",
		},
		{
			name: "offset",
			args: args{
				query:  "SELECT * FROM leaderboard_entries",
				offset: 50,
			},
			want: "SELECT * FROM leaderboard_entries LIMIT 9223372036854775807 OFFSET 50",
		},
		{
			name: "both",
			args: args{
				query:  "SELECT * FROM leaderboard_entries",
				offset: 25,
				limit:  25,
			},
			want: "SELECT * FROM leaderboard_entries LIMIT 25 OFFSET 25",
		},
		{
			name: "negative",
			args: args{
				query:  "SELECT * FROM leaderboard_entries",
				offset: -1,
				limit:  -1,
			},
			want: "SELECT * FROM leaderboard_entries",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildPageClause(tt.args.query, tt.args.offset, tt.args.limit); got != tt.want {
				t.Errorf("BuildPageClause() = %v, want %v", got, tt.want)
			}
		})
	}
}
