package cmd

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/MatrixAI/Polykey-sub016/api"
	"github.com/MatrixAI/Polykey-sub016/nodecfg"
)

// responseSlack 是客户端在查找超时之外额外等待响应的时间
const responseSlack = 5 * time.Second

var findTimeout time.Duration

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "列出路由表中的节点",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var views []api.NodeView
		if err := getResult(apiAddr, "/"+api.Version+"/nodes", 30*time.Second, &views); err != nil {
			return err
		}
		return renderNodes(views)
	},
}

var findCmd = &cobra.Command{
	Use:   "find <id>",
	Short: "查找节点",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var lookup api.LookupView
		path := "/" + api.Version + "/nodes/" + url.PathEscape(args[0]) +
			"?" + api.TimeoutParam + "=" + url.QueryEscape(findTimeout.String())
		if err := getResult(apiAddr, path, findTimeout+responseSlack, &lookup); err != nil {
			return err
		}

		if lookup.Local {
			pterm.Success.Println("在本地路由表中找到节点")
		} else if lookup.Via != nil {
			pterm.Success.Printfln("通过节点 %s 找到节点", lookup.Via.ID)
		}
		return renderNodes([]api.NodeView{lookup.Target})
	},
}

func init() {
	rootCmd.AddCommand(nodesCmd)
	rootCmd.AddCommand(findCmd)

	findCmd.Flags().DurationVar(&findTimeout, "timeout", nodecfg.DefaultLookupTimeout, "查找超时,服务端按它与自身上限中较小者执行")
}

// renderNodes 以表格形式输出节点
func renderNodes(views []api.NodeView) error {
	rows := pterm.TableData{{"节点 ID", "地址"}}
	for _, v := range views {
		rows = append(rows, []string{v.ID, strings.Join(v.Addrs, "\n")})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

// getResult 请求管理接口并把响应中的 data 解码到 out
func getResult(addr, path string, timeout time.Duration, out interface{}) error {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get("http://" + addr + path)
	if err != nil {
		return errors.Wrap(err, "请求管理接口")
	}
	defer resp.Body.Close()

	var res struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return errors.Wrap(err, "解析响应")
	}
	if res.Code != 1 {
		var msg string
		_ = json.Unmarshal(res.Data, &msg)
		return errors.Errorf("%s (%d): %s", res.Message, resp.StatusCode, msg)
	}
	return json.Unmarshal(res.Data, out)
}
