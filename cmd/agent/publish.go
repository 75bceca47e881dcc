package agent

import (
	"github.com/spf13/cobra"
)

func initPublishFlags(root *cobra.Command) {
	f := root.PersistentFlags()
	p := "publish."
	d := defaultCfg.Publish

	f.Bool(p+"log.enable", d.Log.Enable, "-> Log every published status | 日志发布端")
	f.Bool(p+"metrics.enable", d.Metrics.Enable, "-> Export status levels as gauges | Prometheus发布端")

	f.Bool(p+"file.enable", d.File.Enable, "-> Write latest batch to a file | 文件发布端")
	f.String(p+"file.path", d.File.Path, "-> Output file path | 输出文件路径")

	f.Bool(p+"redis.enable", d.Redis.Enable, "-> Publish batches to redis | Redis发布端")
	f.String(p+"redis.addr", d.Redis.Addr, "-> Redis address | Redis地址")
	f.String(p+"redis.password", d.Redis.Password, "-> Redis password | Redis密码")
	f.Int(p+"redis.db", d.Redis.DB, "-> Redis db index | Redis库")
	f.String(p+"redis.channel", d.Redis.Channel, "-> Redis pub/sub channel | Redis频道")
	f.Duration(p+"redis.timeout", d.Redis.Timeout, "-> Redis command timeout | Redis超时")

	f.Bool(p+"mqtt.enable", d.MQTT.Enable, "-> Publish batches to an MQTT broker | MQTT发布端")
	f.String(p+"mqtt.broker", d.MQTT.Broker, "-> MQTT broker url | MQTT地址")
	f.String(p+"mqtt.client_id", d.MQTT.ClientID, "-> MQTT client id | 客户端ID")
	f.String(p+"mqtt.username", d.MQTT.Username, "-> MQTT username | 用户名")
	f.String(p+"mqtt.password", d.MQTT.Password, "-> MQTT password | 密码")
	f.String(p+"mqtt.topic", d.MQTT.Topic, "-> MQTT topic | 主题")
	f.Int(p+"mqtt.qos", d.MQTT.QoS, "-> MQTT QoS [0,1,2] | 服务质量")
	f.Bool(p+"mqtt.retained", d.MQTT.Retained, "-> Retain last message on broker | 保留消息")
	f.Duration(p+"mqtt.timeout", d.MQTT.Timeout, "-> MQTT connect/publish timeout | 超时")
}
